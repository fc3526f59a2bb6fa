// Package signature verifies that a file's leading bytes match the magic
// number registered for its claimed extension. It covers a known set of
// binary formats; extensions without a registered signature are treated as
// unverifiable and pass.
package signature

import (
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// headLen covers the longest registered prefix (8 bytes = 16 hex chars).
const headLen = 8

// prefixesByExt maps a lowercase extension to its accepted hex prefixes.
// Several container formats legitimately share a prefix (zip-derived office
// formats, RIFF-based media).
var prefixesByExt = map[string][]string{
	"jpg":  {"FFD8FF"},
	"jpeg": {"FFD8FF"},
	"png":  {"89504E47"},
	"gif":  {"47494638"},
	"bmp":  {"424D"},
	"tif":  {"49492A00", "4D4D002A"},
	"tiff": {"49492A00", "4D4D002A"},
	"webp": {"52494646"},
	"ico":  {"00000100"},
	"psd":  {"38425053"},

	"pdf": {"25504446"},

	"zip":  {"504B0304", "504B0506"},
	"docx": {"504B0304"},
	"xlsx": {"504B0304"},
	"pptx": {"504B0304"},
	"jar":  {"504B0304"},
	"apk":  {"504B0304"},
	"epub": {"504B0304"},
	"gz":   {"1F8B"},
	"tgz":  {"1F8B"},
	"bz2":  {"425A68"},
	"xz":   {"FD377A585A00"},
	"7z":   {"377ABCAF271C"},
	"rar":  {"526172211A07"},

	"mp3":  {"494433", "FFFB", "FFF3", "FFF2"},
	"wav":  {"52494646"},
	"avi":  {"52494646"},
	"flac": {"664C6143"},
	"ogg":  {"4F676753"},
	"mkv":  {"1A45DFA3"},
	"webm": {"1A45DFA3"},

	"exe": {"4D5A"},
	"msi": {"D0CF11E0"},
	"rpm": {"EDABEEDB"},
	"deb": {"213C617263683E"},

	"sqlite": {"53514C69"},
	"db":     {"53514C69"},

	"woff":  {"774F4646"},
	"woff2": {"774F4632"},
	"ttf":   {"00010000"},
	"otf":   {"4F54544F"},
}

// VerifyBytes checks the leading bytes against the registered prefixes for
// the extension. Unregistered extensions pass unconditionally.
func VerifyBytes(head []byte, ext string) bool {
	prefixes, ok := prefixesByExt[normalizeExt(ext)]
	if !ok {
		return true
	}
	got := strings.ToUpper(hex.EncodeToString(head))
	for _, p := range prefixes {
		if strings.HasPrefix(got, p) {
			return true
		}
	}
	return false
}

// Verify reads the file's leading bytes and delegates to VerifyBytes.
func Verify(filePath, ext string) (bool, error) {
	if _, ok := prefixesByExt[normalizeExt(ext)]; !ok {
		return true, nil
	}
	f, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer f.Close()
	head := make([]byte, headLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return VerifyBytes(head[:n], ext), nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
