package media

import (
	"fmt"
	"strings"

	"github.com/abema/go-mp4"
)

type Codec int

const (
	CodecUnknown Codec = iota
	CodecAVC
	CodecHEVC
	CodecVP8
	CodecVP9
	CodecAV1
	CodecMP4V
	CodecEncrypted
)

func (c Codec) String() string {
	switch c {
	case CodecAVC:
		return "avc"
	case CodecHEVC:
		return "hevc"
	case CodecVP8:
		return "vp8"
	case CodecVP9:
		return "vp9"
	case CodecAV1:
		return "av1"
	case CodecMP4V:
		return "mp4v"
	case CodecEncrypted:
		return "encrypted"
	}
	return "unknown"
}

// ParseCodec accepts the names produced by String plus the usual h26x aliases.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "avc", "h264":
		return CodecAVC, nil
	case "hevc", "h265":
		return CodecHEVC, nil
	case "vp8":
		return CodecVP8, nil
	case "vp9":
		return CodecVP9, nil
	case "av1":
		return CodecAV1, nil
	case "mp4v":
		return CodecMP4V, nil
	}
	return CodecUnknown, fmt.Errorf("unknown codec %q", name)
}

func codecFromSampleEntry(t mp4.BoxType) Codec {
	switch t {
	case mp4.BoxTypeAvc1(), mp4.StrToBoxType("avc3"):
		return CodecAVC
	case mp4.BoxTypeHvc1(), mp4.BoxTypeHev1():
		return CodecHEVC
	case mp4.BoxTypeVp08():
		return CodecVP8
	case mp4.BoxTypeVp09():
		return CodecVP9
	case mp4.BoxTypeAv01():
		return CodecAV1
	case mp4.BoxTypeMp4v():
		return CodecMP4V
	case mp4.BoxTypeEncv():
		return CodecEncrypted
	}
	return CodecUnknown
}
