package policy

import (
	"path"
	"strings"
)

// Sector is a governance category grouping file extensions. The taxonomy is
// fixed; tenants override limits per sector, never the taxonomy itself.
type Sector string

const (
	SectorVisual      Sector = "visual"
	SectorVideo       Sector = "video"
	SectorAudio       Sector = "audio"
	SectorDocs        Sector = "docs"
	SectorData        Sector = "data"
	SectorArchives    Sector = "archives"
	SectorExecutables Sector = "executables"
	SectorScripts     Sector = "scripts"
	SectorConfig      Sector = "config"
	SectorLogs        Sector = "logs"
	SectorMessaging   Sector = "messaging"
	SectorFonts       Sector = "fonts"
	SectorModel3D     Sector = "model3d"
	SectorBackups     Sector = "backups"
	SectorGlobal      Sector = "global"
)

var sectorByExt = map[string]Sector{
	// visual
	"jpg": SectorVisual, "jpeg": SectorVisual, "png": SectorVisual, "gif": SectorVisual,
	"webp": SectorVisual, "svg": SectorVisual, "bmp": SectorVisual, "tif": SectorVisual,
	"tiff": SectorVisual, "ico": SectorVisual, "heic": SectorVisual, "avif": SectorVisual,
	"psd": SectorVisual,
	// video
	"mp4": SectorVideo, "webm": SectorVideo, "mov": SectorVideo, "avi": SectorVideo,
	"mkv": SectorVideo, "flv": SectorVideo, "wmv": SectorVideo, "m4v": SectorVideo,
	// audio
	"mp3": SectorAudio, "wav": SectorAudio, "ogg": SectorAudio, "flac": SectorAudio,
	"aac": SectorAudio, "m4a": SectorAudio, "wma": SectorAudio, "opus": SectorAudio,
	// docs
	"pdf": SectorDocs, "doc": SectorDocs, "docx": SectorDocs, "xls": SectorDocs,
	"xlsx": SectorDocs, "ppt": SectorDocs, "pptx": SectorDocs, "txt": SectorDocs,
	"rtf": SectorDocs, "odt": SectorDocs, "ods": SectorDocs, "odp": SectorDocs,
	"md": SectorDocs, "epub": SectorDocs,
	// data
	"json": SectorData, "xml": SectorData, "csv": SectorData, "tsv": SectorData,
	"parquet": SectorData, "avro": SectorData, "ndjson": SectorData, "sqlite": SectorData,
	"db": SectorData,
	// archives
	"zip": SectorArchives, "tar": SectorArchives, "gz": SectorArchives, "tgz": SectorArchives,
	"bz2": SectorArchives, "xz": SectorArchives, "7z": SectorArchives, "rar": SectorArchives,
	// executables
	"exe": SectorExecutables, "msi": SectorExecutables, "dmg": SectorExecutables,
	"deb": SectorExecutables, "rpm": SectorExecutables, "apk": SectorExecutables,
	"jar": SectorExecutables, "bin": SectorExecutables, "appimage": SectorExecutables,
	// scripts
	"sh": SectorScripts, "bash": SectorScripts, "py": SectorScripts, "js": SectorScripts,
	"ts": SectorScripts, "rb": SectorScripts, "ps1": SectorScripts, "bat": SectorScripts,
	"php": SectorScripts, "pl": SectorScripts, "lua": SectorScripts,
	// config
	"yaml": SectorConfig, "yml": SectorConfig, "toml": SectorConfig, "ini": SectorConfig,
	"env": SectorConfig, "conf": SectorConfig, "properties": SectorConfig,
	// logs
	"log": SectorLogs, "trace": SectorLogs,
	// messaging artifacts
	"eml": SectorMessaging, "msg": SectorMessaging, "mbox": SectorMessaging,
	"ics": SectorMessaging, "vcf": SectorMessaging,
	// fonts / UI assets
	"ttf": SectorFonts, "otf": SectorFonts, "woff": SectorFonts, "woff2": SectorFonts,
	"eot": SectorFonts, "css": SectorFonts,
	// 3D / CAD
	"obj": SectorModel3D, "stl": SectorModel3D, "fbx": SectorModel3D, "gltf": SectorModel3D,
	"glb": SectorModel3D, "dae": SectorModel3D, "dwg": SectorModel3D, "dxf": SectorModel3D,
	"step": SectorModel3D, "blend": SectorModel3D,
	// backups
	"bak": SectorBackups, "dump": SectorBackups, "snapshot": SectorBackups, "bkp": SectorBackups,
}

// Sectors returns the full taxonomy in declaration order, global last.
func Sectors() []Sector {
	return []Sector{
		SectorVisual, SectorVideo, SectorAudio, SectorDocs, SectorData,
		SectorArchives, SectorExecutables, SectorScripts, SectorConfig,
		SectorLogs, SectorMessaging, SectorFonts, SectorModel3D,
		SectorBackups, SectorGlobal,
	}
}

// Ext extracts the lowercase extension of a file name, without the dot.
func Ext(name string) string {
	e := strings.ToLower(path.Ext(name))
	return strings.TrimPrefix(e, ".")
}

// SectorForExt maps an extension to its sector; unknown extensions fall into
// the global sector.
func SectorForExt(ext string) Sector {
	if s, ok := sectorByExt[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return s
	}
	return SectorGlobal
}
