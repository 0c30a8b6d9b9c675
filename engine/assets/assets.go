package assets

import (
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/cozy/engine/assets/loaders"
	"github.com/spaghettifunk/cozy/engine/core"
)

type Loader interface {
	Load(name string, r io.Reader) (*loaders.Resource, error)
}

type AssetInfo struct {
	Path       string
	Type       loaders.ResourceType
	LastLoaded time.Time
}

// AssetManager serves the built-in assets, letting files found in an
// optional override directory take their place. Names are slash separated
// and relative to the asset root, e.g. "shaders/quad.vert.spv".
type AssetManager struct {
	builtin     fs.FS
	overrideDir string
	assets      map[string]AssetInfo
	loaders     map[loaders.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	events   chan string
}

func NewAssetManager() *AssetManager {
	sub, err := fs.Sub(builtinFS, builtinRoot)
	if err != nil {
		// the embedded tree is fixed at build time
		panic(err)
	}
	am := &AssetManager{
		builtin: sub,
		assets:  make(map[string]AssetInfo),
		loaders: make(map[loaders.ResourceType]Loader),
		events:  make(chan string, 16),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	am.registerLoader(loaders.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(loaders.ResourceTypeImage, &loaders.TextureLoader{})
	return am
}

// Initialize indexes overrideDir, if any, and keeps watching it when watch
// is set.
func (am *AssetManager) Initialize(overrideDir string, watch bool) error {
	if overrideDir == "" {
		return nil
	}
	abs, err := filepath.Abs(overrideDir)
	if err != nil {
		return err
	}
	am.overrideDir = abs

	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		am.fsnotify = w
		go am.start()
	}
	if _, err := am.watchRecursive(abs); err != nil {
		return fmt.Errorf("asset override dir: %w", err)
	}
	core.LogInfo("asset overrides from %s (watch=%t)", abs, watch)
	return nil
}

// Changes delivers the names of overridden assets as they are created,
// modified or removed. Notifications are dropped when nobody listens.
func (am *AssetManager) Changes() <-chan string {
	return am.events
}

// Watching reports whether the override directory is being watched.
func (am *AssetManager) Watching() bool {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return am.fsnotify != nil && !am.isClosed
}

func (am *AssetManager) Shutdown() {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return
	}
	am.isClosed = true
	am.mutex.Unlock()

	if am.fsnotify != nil {
		close(am.done)
		<-am.stopped
	}
}

func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadShader returns the SPIR-V words of the named shader.
func (am *AssetManager) LoadShader(name string) ([]uint32, error) {
	res, err := am.LoadAsset(name)
	if err != nil {
		return nil, err
	}
	code, ok := res.Data.([]uint32)
	if !ok {
		return nil, fmt.Errorf("asset %s is a %s, not a shader", name, res.Type)
	}
	return code, nil
}

// LoadTexture returns the named image as RGBA pixels.
func (am *AssetManager) LoadTexture(name string) (*image.RGBA, error) {
	res, err := am.LoadAsset(name)
	if err != nil {
		return nil, err
	}
	img, ok := res.Data.(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("asset %s is a %s, not an image", name, res.Type)
	}
	return img, nil
}

// LoadAsset decodes an asset with the loader registered for its extension.
func (am *AssetManager) LoadAsset(name string) (*loaders.Resource, error) {
	assetType := determineAssetType(name)
	loader, ok := am.loaders[assetType]
	if !ok {
		return nil, fmt.Errorf("no loader registered for asset %s", name)
	}

	r, source, err := am.open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	res, err := loader.Load(name, r)
	if err != nil {
		return nil, err
	}
	res.FullPath = source
	core.LogDebug("loaded %s asset %s from %s", assetType, name, source)
	return res, nil
}

func (am *AssetManager) open(name string) (io.ReadCloser, string, error) {
	am.mutex.Lock()
	asset, overridden := am.assets[name]
	if overridden {
		asset.LastLoaded = time.Now()
		am.assets[name] = asset
	}
	am.mutex.Unlock()

	if overridden {
		f, err := os.Open(asset.Path)
		if err == nil {
			return f, asset.Path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", err
		}
		am.removeAsset(name)
	}

	f, err := am.builtin.Open(path.Clean(name))
	if err != nil {
		return nil, "", fmt.Errorf("asset not found: %s: %w", name, err)
	}
	return f, builtinRoot + "/" + name, nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleWatchEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleWatchEvent(e fsnotify.Event) {
	var names []string
	s, err := os.Stat(e.Name)
	switch {
	case err == nil && s.IsDir():
		if !e.Has(fsnotify.Create) {
			return
		}
		// files may land in a new directory before it is watched
		if names, err = am.watchRecursive(e.Name); err != nil {
			core.LogWarn("asset watcher: %s", err)
		}
	case e.Has(fsnotify.Create), e.Has(fsnotify.Write):
		names = append(names, am.handleFileEvent(e.Name))
	case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
		// a removed path can't be stat'ed, so it may also have been a directory
		names = append(names, am.removeAsset(am.assetName(e.Name)))
		_ = am.fsnotify.Remove(e.Name)
	}

	for _, name := range names {
		if name == "" {
			continue
		}
		select {
		case am.events <- name:
		default:
		}
	}
}

// watchRecursive indexes every file under root and, with a watcher, adds
// each directory to the watch list. It returns the asset names it indexed.
func (am *AssetManager) watchRecursive(root string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(root, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if am.fsnotify != nil {
				return am.fsnotify.Add(walkPath)
			}
			return nil
		}
		if name := am.handleFileEvent(walkPath); name != "" {
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

func (am *AssetManager) assetName(p string) string {
	rel, err := filepath.Rel(am.overrideDir, p)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}

// handleFileEvent indexes a created or modified override file and returns
// its asset name, or "" if the file is not an asset.
func (am *AssetManager) handleFileEvent(p string) string {
	name := am.assetName(p)
	assetType := determineAssetType(name)
	if assetType == loaders.ResourceTypeNone {
		return ""
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[name] = AssetInfo{
		Path: p,
		Type: assetType,
	}
	return name
}

func (am *AssetManager) removeAsset(name string) string {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if _, ok := am.assets[name]; !ok {
		return ""
	}
	delete(am.assets, name)
	return name
}

func determineAssetType(name string) loaders.ResourceType {
	switch path.Ext(name) {
	case ".spv":
		return loaders.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".webp":
		return loaders.ResourceTypeImage
	default:
		return loaders.ResourceTypeNone
	}
}
