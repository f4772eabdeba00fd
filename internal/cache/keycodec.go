package cache

import (
	"strings"

	"github.com/opencontainers/go-digest"
)

// maxFileNameLen 留出余量，避免超过常见文件系统 255 字节的文件名上限。
const maxFileNameLen = 200

const upperHex = "0123456789ABCDEF"

// hashedPrefix 中的 '-' 在普通编码里总会被转义，因此哈希文件名不会与编码文件名冲突。
const hashedPrefix = "sha256-"

// LookupKey 将调用方传入的资源路径规范化为缓存键（去除首尾空白）。
func LookupKey(key string) string {
	return strings.TrimSpace(key)
}

// DiskFileName 把任意 key 映射为仅含字母数字与 '%' 的文件名。
// 非字母数字字节按 %XX 编码，映射是单射的；过长或为空时退回到 sha256 摘要。
func DiskFileName(key string) string {
	if key == "" {
		return hashedName(key)
	}

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isAlphanumeric(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0f])
		}
		if b.Len() > maxFileNameLen {
			return hashedName(key)
		}
	}
	return b.String()
}

func hashedName(key string) string {
	return hashedPrefix + digest.SHA256.FromString(key).Encoded()
}

func isAlphanumeric(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
