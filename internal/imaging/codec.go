package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"

	// 注册 DecodeConfig/Decode 可识别的格式。
	_ "image/gif"
	_ "image/png"

	"github.com/any-hub/asset-hub/internal/asset"
)

// DefaultJPEGQuality 对应 0.9 的压缩质量。
const DefaultJPEGQuality = 90

// ErrNotImage 表示字节不是可识别的图片。
var ErrNotImage = errors.New("payload is not a supported image")

// ImageDecoder 只解析图片头部以校验格式并取得尺寸，原始字节保持不变。
type ImageDecoder struct{}

var _ asset.Decoder = ImageDecoder{}

// Decode implements asset.Decoder.
func (ImageDecoder) Decode(data []byte) (*asset.Asset, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty dimensions", ErrNotImage)
	}
	return asset.New(data, "image/"+format, cfg.Width, cfg.Height), nil
}

// RawDecoder 接受任意非空字节，MIME 类型通过内容嗅探得出。
type RawDecoder struct{}

var _ asset.Decoder = RawDecoder{}

// Decode implements asset.Decoder.
func (RawDecoder) Decode(data []byte) (*asset.Asset, error) {
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}
	return asset.New(data, http.DetectContentType(data), 0, 0), nil
}

// NewDecoder 按配置名称返回解码器："image"（默认）或 "raw"。
func NewDecoder(name string) (asset.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "image":
		return ImageDecoder{}, nil
	case "raw":
		return RawDecoder{}, nil
	default:
		return nil, fmt.Errorf("unknown decoder: %s", name)
	}
}

// JPEGEncoder 把任意可识别图片重新编码为 JPEG。
type JPEGEncoder struct {
	Quality int
}

var _ asset.Encoder = JPEGEncoder{}

// Encode implements asset.Encoder.
func (e JPEGEncoder) Encode(data []byte) (asset.Encoded, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return asset.Encoded{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	quality := e.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return asset.Encoded{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return asset.Encoded{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Extension:   ".jpg",
	}, nil
}
