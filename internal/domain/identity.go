package domain

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// DestinationPath computes the on-disk path for a fetch task's source URL,
// relative to the item root. It is pure: the same (itemRoot, kind, sourceURL)
// always produces the same path, independent of call order. Both the Task
// Planner and the Playlist Rewriter must derive paths through this function
// so their outputs stay consistent.
func DestinationPath(itemRoot string, kind TaskType, sourceURL string) string {
	return path.Join(itemRoot, string(kind), RelativeDestination(kind, sourceURL))
}

// RelativeDestination is the "<md5>.<ext>" leaf shared by the planner and
// the rewriter (the rewriter addresses it relative to a playlist's own
// directory, the planner addresses it under the item root).
func RelativeDestination(kind TaskType, sourceURL string) string {
	return HashURL(sourceURL) + extensionOf(sourceURL)
}

// HashURL is the MD5 hex digest of a task's absolute source URL.
func HashURL(sourceURL string) string {
	sum := md5.Sum([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}

// extensionOf returns the original file extension of a URL's last path
// segment (including the leading dot), or "" if it has none.
func extensionOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return extensionOfPath(rawURL)
	}
	return extensionOfPath(u.Path)
}

func extensionOfPath(p string) string {
	base := path.Base(p)
	ext := path.Ext(base)
	if ext == base {
		// e.g. ".m3u8" with no stem — treat as no extension
		return ""
	}
	return ext
}

// SafeItemID percent-encodes an item id for use as a URL path segment and a
// filesystem directory name. If the id contains characters that survive
// encoding as empty or the id is empty, the caller gets the MD5 fallback.
func SafeItemID(id string) string {
	if id == "" {
		return HashURL(id)
	}
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		if isUnreservedPathByte(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteString(url.QueryEscape(string(c)))
	}
	safe := b.String()
	if safe == "" {
		return HashURL(id)
	}
	return safe
}

func isUnreservedPathByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	}
	return false
}
