package settings

import (
	"bytes"
	"sync"
)

var storedValueBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 256)
	},
}

func releaseStoredValueBytes(b []byte) {
	storedValueBytesPool.Put(b[:0])
}

var changeBufPool = &sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

func releaseChangeBuf(buf *bytes.Buffer) {
	buf.Reset()
	changeBufPool.Put(buf)
}
