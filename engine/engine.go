package engine

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/spaghettifunk/cozy/engine/assets"
	"github.com/spaghettifunk/cozy/engine/config"
	"github.com/spaghettifunk/cozy/engine/core"
	"github.com/spaghettifunk/cozy/engine/media"
	"github.com/spaghettifunk/cozy/engine/platform"
	"github.com/spaghettifunk/cozy/engine/renderer/vulkan"
	"github.com/spaghettifunk/cozy/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

type Engine struct {
	cfg          *config.Config
	currentStage Stage

	platform     *platform.Platform
	assetManager *assets.AssetManager
	renderer     *vulkan.VulkanRenderer

	mu    sync.Mutex
	loop  *FrameLoop
	video *media.VideoInfo
}

func New(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:          cfg,
		currentStage: EngineStageUninitialized,
		platform:     platform.New(),
		assetManager: assets.NewAssetManager(),
	}, nil
}

// Initialize probes the input and only then opens the window and brings up
// the renderer. A container that cannot be probed never opens a window.
func (e *Engine) Initialize(in Input) error {
	e.currentStage = EngineStageInitializing

	info, err := e.openInput(in)
	if err != nil {
		return err
	}
	e.video = info

	vert, frag, texture, err := e.initializeAssets()
	if err != nil {
		return err
	}

	if err := e.platform.Startup(e.cfg.Window.Title, e.cfg.Window.Width, e.cfg.Window.Height); err != nil {
		e.assetManager.Shutdown()
		return err
	}

	e.renderer = vulkan.New(e.platform)
	if err := e.renderer.Initialize(vulkan.InitConfig{
		AppName:        e.cfg.Window.Title,
		Validation:     e.cfg.Renderer.Validation,
		ClearColor:     e.cfg.Renderer.ClearColor,
		VertexShader:   vert,
		FragmentShader: frag,
		Texture:        texture,
	}); err != nil {
		e.assetManager.Shutdown()
		return errors.Join(err, e.platform.Shutdown())
	}

	e.mu.Lock()
	e.loop = NewFrameLoop(e.platform, e.renderer)
	e.mu.Unlock()

	e.currentStage = EngineStageInitialized
	return nil
}

// initializeAssets starts the asset manager and loads the built-in assets.
// On failure the asset manager is shut down again.
func (e *Engine) initializeAssets() (vert, frag []uint32, texture *image.RGBA, err error) {
	if err = e.assetManager.Initialize(e.cfg.Assets.OverrideDir, e.cfg.Assets.Watch); err == nil {
		vert, frag, texture, err = e.loadBuiltins()
	}
	if err != nil {
		e.assetManager.Shutdown()
		return nil, nil, nil, err
	}
	return vert, frag, texture, nil
}

// loadBuiltins reads the quad shaders and the texture on the job system.
func (e *Engine) loadBuiltins() (vert, frag []uint32, texture *image.RGBA, err error) {
	js, err := systems.NewJobSystem(runtime.NumCPU(), 0)
	if err != nil {
		return nil, nil, nil, err
	}
	defer js.Shutdown()

	err = js.RunAll(
		systems.Job{Name: assets.QuadVertexShader, Run: func() (err error) {
			vert, err = e.assetManager.LoadShader(assets.QuadVertexShader)
			return err
		}},
		systems.Job{Name: assets.QuadFragmentShader, Run: func() (err error) {
			frag, err = e.assetManager.LoadShader(assets.QuadFragmentShader)
			return err
		}},
		systems.Job{Name: assets.DefaultTexture, Run: func() (err error) {
			texture, err = e.assetManager.LoadTexture(assets.DefaultTexture)
			return err
		}},
	)
	if err != nil {
		return nil, nil, nil, err
	}
	return vert, frag, texture, nil
}

func (e *Engine) openInput(in Input) (*media.VideoInfo, error) {
	info, err := media.ProbeFile(in.Path)
	if err != nil {
		return nil, err
	}
	core.LogInfo("%s: %s %dx%d, timescale %d, %.2fs",
		in.Path, info.Spec.Codec, info.Spec.Width, info.Spec.Height, info.Timescale, info.Seconds())

	if in.Fallback && e.cfg.Media.VerifySample {
		exp, err := e.cfg.Expectation()
		if err != nil {
			return nil, err
		}
		if err := info.Verify(exp); err != nil {
			return nil, err
		}
		core.LogDebug("sample %s verified", in.Path)
	}
	return info, nil
}

// Video returns what the probe found in the input container.
func (e *Engine) Video() *media.VideoInfo {
	return e.video
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Run drives the frame loop until the window closes or Shutdown is called,
// then tears down the window and the asset manager.
func (e *Engine) Run() error {
	e.mu.Lock()
	loop := e.loop
	e.mu.Unlock()
	if loop == nil {
		return fmt.Errorf("engine is %s, not initialized", e.currentStage)
	}

	done := make(chan struct{})
	defer close(done)
	if e.assetManager.Watching() {
		go e.logAssetChanges(done)
	}

	e.currentStage = EngineStageRunning
	err := loop.Run()

	e.currentStage = EngineStageShuttingDown
	e.assetManager.Shutdown()
	return errors.Join(err, e.platform.Shutdown())
}

func (e *Engine) logAssetChanges(done <-chan struct{}) {
	for {
		select {
		case name := <-e.assetManager.Changes():
			core.LogInfo("asset %s changed, restart to pick it up", name)
		case <-done:
			return
		}
	}
}

// Shutdown asks the frame loop to stop. It is safe to call from a signal
// handler goroutine.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loop == nil {
		return nil
	}
	e.loop.RequestClose()
	return nil
}
