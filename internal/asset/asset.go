package asset

import "errors"

// Asset 是解码后的不可变资源。写入内存层后不再修改；需要更新时整体替换。
type Asset struct {
	data      []byte
	mediaType string
	width     int
	height    int
}

// New 构建 Asset，data 的所有权转移给 Asset，调用方之后不得再修改。
func New(data []byte, mediaType string, width, height int) *Asset {
	return &Asset{
		data:      data,
		mediaType: mediaType,
		width:     width,
		height:    height,
	}
}

// Bytes 返回原始字节，只读。
func (a *Asset) Bytes() []byte { return a.data }

// Size 返回字节数。
func (a *Asset) Size() int { return len(a.data) }

// MediaType 返回 MIME 类型，例如 image/jpeg。
func (a *Asset) MediaType() string { return a.mediaType }

// Width 返回像素宽度，解码器不识别尺寸时为 0。
func (a *Asset) Width() int { return a.width }

// Height 返回像素高度，解码器不识别尺寸时为 0。
func (a *Asset) Height() int { return a.height }

// Decoder 把原始字节转换为 Asset。缓存核心只依赖这个接口，不依赖任何图片库。
type Decoder interface {
	Decode(data []byte) (*Asset, error)
}

// DecoderFunc 让普通函数满足 Decoder。
type DecoderFunc func(data []byte) (*Asset, error)

// Decode makes DecoderFunc satisfy Decoder.
func (f DecoderFunc) Decode(data []byte) (*Asset, error) {
	return f(data)
}

// Encoded 是上传前编码的结果。
type Encoded struct {
	Data        []byte
	ContentType string
	// Extension 包含前导点，例如 ".jpg"。
	Extension string
}

// Encoder 在上传前重新编码调用方提供的字节。
type Encoder interface {
	Encode(data []byte) (Encoded, error)
}

var (
	// ErrEmptyUpload 表示上传内容为空。
	ErrEmptyUpload = errors.New("upload data is empty")
	// ErrInvalidNamespace 表示上传命名空间为空、为绝对路径或包含 ".."。
	ErrInvalidNamespace = errors.New("invalid upload namespace")
	// ErrUnauthenticated 表示缺少归属用户，无法构造上传路径。
	ErrUnauthenticated = errors.New("owner id required")
	// ErrNoEncoder 表示服务未配置编码器，无法上传。
	ErrNoEncoder = errors.New("upload encoder not configured")
)
