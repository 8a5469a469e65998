package jmap

import (
	"encoding/binary"
	"fmt"
)

// keyHash is a packed little-endian representation of a lowercased JSON
// object key, used in place of string comparison for dispatch. Keys are
// packed 8 bytes per word, lowest word first; the longest recognized JMAP
// key ("onSuccessDestroyOriginal", 24 bytes) fits in three words, so four
// words cover every recognized key with headroom. Keys longer than 32
// bytes cannot be packed and are treated as unknown.
type keyHash struct {
	w0, w1, w2, w3 uint64
}

// errKeyTooLong is returned by packKey for keys that do not fit in 32 bytes.
// Such keys are never JMAP-recognized, so callers treat the error as "unknown
// key" rather than a parse failure.
var errKeyTooLong = fmt.Errorf("jmap: key exceeds 32 bytes")

// packKey lower-cases s (ASCII only — JMAP keys are ASCII) and packs it into
// a keyHash. It never allocates beyond the fixed 32-byte scratch buffer.
func packKey(s string) (keyHash, error) {
	if len(s) > 32 {
		return keyHash{}, errKeyTooLong
	}
	var buf [32]byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		buf[i] = c
	}
	return keyHash{
		w0: binary.LittleEndian.Uint64(buf[0:8]),
		w1: binary.LittleEndian.Uint64(buf[8:16]),
		w2: binary.LittleEndian.Uint64(buf[16:24]),
		w3: binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}

// mustPackKey packs a known key literal at package init. Every key below is
// a short ASCII literal, so the only possible error (errKeyTooLong) can
// never fire; panicking surfaces a programmer error immediately at init
// rather than silently mis-dispatching at request time.
func mustPackKey(s string) keyHash {
	h, err := packKey(s)
	if err != nil {
		panic(fmt.Sprintf("jmap: key literal %q cannot be packed: %v", s, err))
	}
	return h
}

// Recognized top-level and argument keys. Declaring them as package vars
// computed once at init time gives a branch-free, precomputed dispatch key
// for each, without requiring a code generator.
var (
	keyUsing       = mustPackKey("using")
	keyMethodCalls = mustPackKey("methodCalls")
	keyCreatedIds  = mustPackKey("createdIds")
	keyAccountID   = mustPackKey("accountId")
	keyIds         = mustPackKey("ids")
	keyProperties  = mustPackKey("properties")
	keyResultOf    = mustPackKey("resultOf")
	keyPath        = mustPackKey("path")
	keyName        = mustPackKey("name")

	keyBodyProperties      = mustPackKey("bodyProperties")
	keyFetchTextBodyValues = mustPackKey("fetchTextBodyValues")
	keyFetchHTMLBodyValues = mustPackKey("fetchHTMLBodyValues")
	keyFetchAllBodyValues  = mustPackKey("fetchAllBodyValues")
	keyMaxBodyValueBytes   = mustPackKey("maxBodyValueBytes")

	keyFilter       = mustPackKey("filter")
	keySort         = mustPackKey("sort")
	keyPosition     = mustPackKey("position")
	keyAnchor       = mustPackKey("anchor")
	keyAnchorOffset = mustPackKey("anchorOffset")
	keyLimit        = mustPackKey("limit")
	keyCalcTotal    = mustPackKey("calculateTotal")

	keyIfInState = mustPackKey("ifInState")
	keyCreate    = mustPackKey("create")
	keyUpdate    = mustPackKey("update")
	keyDestroy   = mustPackKey("destroy")

	keySinceState      = mustPackKey("sinceState")
	keyMaxChanges      = mustPackKey("maxChanges")
	keySinceQueryState = mustPackKey("sinceQueryState")
	keyUpToID          = mustPackKey("upToId")

	keyFromAccountID            = mustPackKey("fromAccountId")
	keyOnSuccessDestroyOriginal = mustPackKey("onSuccessDestroyOriginal")
	keyDestroyFromIfInState     = mustPackKey("destroyFromIfInState")

	keyBlobIds = mustPackKey("blobIds")
	keyBlobID  = mustPackKey("blobId")
	keyEmails  = mustPackKey("emails")
)

// knownKeyLiterals lists every key literal packed above; it exists solely so
// tests can assert the packing is injective without
// hand-maintaining a second copy of the list.
var knownKeyLiterals = []string{
	"using", "methodCalls", "createdIds", "accountId", "ids", "properties",
	"resultOf", "path", "name",
	"bodyProperties", "fetchTextBodyValues", "fetchHTMLBodyValues",
	"fetchAllBodyValues", "maxBodyValueBytes",
	"filter", "sort", "position", "anchor", "anchorOffset", "limit",
	"calculateTotal",
	"ifInState", "create", "update", "destroy",
	"sinceState", "maxChanges", "sinceQueryState", "upToId",
	"fromAccountId", "onSuccessDestroyOriginal", "destroyFromIfInState",
	"blobIds", "blobId", "emails",
}
