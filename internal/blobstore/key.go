package blobstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

// NewKey builds an object key of the form
// {ownerID}/{unix-millis}-{random-suffix}{ext}. Prefixing with the owner
// keeps one professional's uploads together and makes keys collision-free
// across users; the millisecond timestamp plus random suffix makes them
// collision-free within one.
func NewKey(ownerUserID int64, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%d/%d-%s%s", ownerUserID, now.UnixMilli(), randomSuffix(), ext)
}

func randomSuffix() string {
	b := make([]byte, 6)
	rand.Read(b)
	return hex.EncodeToString(b)
}
