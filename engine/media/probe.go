package media

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/abema/go-mp4"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/h2non/filetype/types"

	"github.com/spaghettifunk/cozy/engine/core"
)

// sniffLen is the header length filetype needs to match any known type.
const sniffLen = 262

var containerTypes = []types.Type{
	matchers.TypeMp4,
	matchers.TypeM4v,
	matchers.TypeMov,
	matchers.Type3gp,
}

type VideoSpec struct {
	Width  uint16
	Height uint16
	Codec  Codec
}

type AVCConfig struct {
	Profile    uint8
	Level      uint8
	NALULength uint8
	SPS        [][]byte
	PPS        [][]byte
}

// Empty reports whether no parameter sets were stored.
func (a *AVCConfig) Empty() bool {
	return a == nil || (len(a.SPS) == 0 && len(a.PPS) == 0)
}

type VideoInfo struct {
	Timescale   uint32
	Duration    uint64
	Spec        VideoSpec
	SampleEntry string
	AVC         *AVCConfig
}

// Seconds converts the movie duration using the movie timescale.
func (v *VideoInfo) Seconds() float64 {
	if v.Timescale == 0 {
		return 0
	}
	return float64(v.Duration) / float64(v.Timescale)
}

func ProbeFile(path string) (*VideoInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := Probe(f)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return info, nil
}

// Probe reads the movie header and the first video track of an MP4 family
// container.
func Probe(r io.ReadSeeker) (*VideoInfo, error) {
	if err := sniff(r); err != nil {
		return nil, err
	}

	w := &walker{}
	if _, err := mp4.ReadBoxStructure(r, w.visit); err != nil {
		return nil, err
	}
	if !w.sawMvhd {
		return nil, errors.New("movie header (moov/mvhd) not found")
	}

	for _, tr := range w.tracks {
		if tr.handler != handlerVideo || !tr.hasEntry {
			continue
		}
		info := &VideoInfo{
			Timescale:   w.timescale,
			Duration:    w.duration,
			SampleEntry: tr.entry.String(),
			Spec: VideoSpec{
				Width:  tr.width,
				Height: tr.height,
				Codec:  codecFromSampleEntry(tr.entry),
			},
			AVC: tr.avc,
		}
		return info, nil
	}
	return nil, core.ErrNoVideoTrack
}

func sniff(r io.ReadSeeker) error {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return core.ErrNotVideoContainer
		}
		return err
	}
	head = head[:n]

	matched := false
	for _, t := range containerTypes {
		if filetype.IsType(head, t) {
			matched = true
			break
		}
	}
	if !matched {
		return core.ErrNotVideoContainer
	}
	_, err = r.Seek(0, io.SeekStart)
	return err
}

var handlerVideo = [4]byte{'v', 'i', 'd', 'e'}

type track struct {
	handler  [4]byte
	hasEntry bool
	entry    mp4.BoxType
	width    uint16
	height   uint16
	avc      *AVCConfig
}

type walker struct {
	sawMvhd   bool
	timescale uint32
	duration  uint64
	tracks    []*track
}

func (w *walker) current() *track {
	if len(w.tracks) == 0 {
		return nil
	}
	return w.tracks[len(w.tracks)-1]
}

var (
	pathMoov     = mp4.BoxPath{mp4.BoxTypeMoov()}
	pathMvhd     = mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()}
	pathTrak     = mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak()}
	pathMdia     = mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeMdia()}
	pathHdlr     = mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeMdia(), mp4.BoxTypeHdlr()}
	pathMinf     = mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeMdia(), mp4.BoxTypeMinf()}
	pathStbl     = mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeMdia(), mp4.BoxTypeMinf(), mp4.BoxTypeStbl()}
	pathStsd     = mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeMdia(), mp4.BoxTypeMinf(), mp4.BoxTypeStbl(), mp4.BoxTypeStsd()}
	depthEntry   = len(pathStsd) + 1
	depthEntryCh = len(pathStsd) + 2
)

func pathIs(p, want mp4.BoxPath) bool {
	if len(p) != len(want) {
		return false
	}
	for i := range p {
		if p[i] != want[i] {
			return false
		}
	}
	return true
}

func (w *walker) visit(h *mp4.ReadHandle) (interface{}, error) {
	p := h.Path
	switch {
	case pathIs(p, pathMoov), pathIs(p, pathMdia), pathIs(p, pathMinf), pathIs(p, pathStbl), pathIs(p, pathStsd):
		return h.Expand()

	case pathIs(p, pathMvhd):
		box, _, err := h.ReadPayload()
		if err != nil {
			return nil, err
		}
		mvhd := box.(*mp4.Mvhd)
		w.sawMvhd = true
		w.timescale = mvhd.Timescale
		if mvhd.GetVersion() == 0 {
			w.duration = uint64(mvhd.DurationV0)
		} else {
			w.duration = mvhd.DurationV1
		}
		return nil, nil

	case pathIs(p, pathTrak):
		w.tracks = append(w.tracks, &track{})
		return h.Expand()

	case pathIs(p, pathHdlr):
		box, _, err := h.ReadPayload()
		if err != nil {
			return nil, err
		}
		if tr := w.current(); tr != nil {
			tr.handler = box.(*mp4.Hdlr).HandlerType
		}
		return nil, nil

	case len(p) == depthEntry && pathIs(p[:len(pathStsd)], pathStsd):
		return w.visitSampleEntry(h)

	case len(p) == depthEntryCh && pathIs(p[:len(pathStsd)], pathStsd) && h.BoxInfo.Type == mp4.BoxTypeAvcC():
		tr := w.current()
		if tr == nil || tr.avc != nil {
			return nil, nil
		}
		box, _, err := h.ReadPayload()
		if err != nil {
			return nil, fmt.Errorf("avcC: %w", err)
		}
		tr.avc = avcConfig(box.(*mp4.AVCDecoderConfiguration))
		return nil, nil
	}
	return nil, nil
}

// visitSampleEntry records the first sample entry of the current track only.
func (w *walker) visitSampleEntry(h *mp4.ReadHandle) (interface{}, error) {
	tr := w.current()
	if tr == nil || tr.hasEntry {
		return nil, nil
	}
	tr.hasEntry = true
	tr.entry = h.BoxInfo.Type

	if !h.BoxInfo.Type.IsSupported(h.BoxInfo.Context) {
		return nil, nil
	}
	box, _, err := h.ReadPayload()
	if err != nil {
		return nil, fmt.Errorf("sample entry %s: %w", h.BoxInfo.Type, err)
	}
	vse, ok := box.(*mp4.VisualSampleEntry)
	if !ok {
		return nil, nil
	}
	tr.width = vse.Width
	tr.height = vse.Height
	return h.Expand()
}

func avcConfig(c *mp4.AVCDecoderConfiguration) *AVCConfig {
	cfg := &AVCConfig{
		Profile:    c.Profile,
		Level:      c.Level,
		NALULength: c.LengthSizeMinusOne + 1,
	}
	for _, ps := range c.SequenceParameterSets {
		cfg.SPS = append(cfg.SPS, ps.NALUnit)
	}
	for _, ps := range c.PictureParameterSets {
		cfg.PPS = append(cfg.PPS, ps.NALUnit)
	}
	return cfg
}
