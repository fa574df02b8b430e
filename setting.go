package settings

// Setting binds a value of type T to a key, for use as a struct field or
// package variable:
//
//	var volume = settings.NewSetting(store, "volume", 0.5)
//	volume.Set(0.8)
//
// A Setting is not safe for concurrent use. It keeps its traversal state
// between calls and rebuilds it only when the resolved key changes.
type Setting[T any] struct {
	s       Settings
	codec   *Codec[T]
	keyFunc func() string
	def     T

	key string
	enc *encoder
	dec *decoder
	rem *remover
}

func NewSetting[T any](s Settings, key string, def T) *Setting[T] {
	return NewSettingWith(s, CodecOf[T](), key, def)
}

// NewSettingWith uses a codec with a manually built descriptor.
func NewSettingWith[T any](s Settings, codec *Codec[T], key string, def T) *Setting[T] {
	return &Setting[T]{
		s:       s,
		codec:   codec,
		keyFunc: func() string { return key },
		def:     def,
	}
}

// NewSettingFunc resolves the key on every access, e.g. from the name of
// the currently selected profile.
func NewSettingFunc[T any](s Settings, keyFunc func() string, def T) *Setting[T] {
	return &Setting[T]{
		s:       s,
		codec:   CodecOf[T](),
		keyFunc: keyFunc,
		def:     def,
	}
}

func (st *Setting[T]) bind() {
	k := st.keyFunc()
	if st.enc != nil && k == st.key {
		return
	}
	st.key = k
	st.enc = newEncoder(st.s, k)
	st.dec = newDecoder(st.s, k)
	st.rem = newRemover(st.s, k)
}

func (st *Setting[T]) Key() string {
	st.bind()
	return st.key
}

// Get returns the stored value or the default.
func (st *Setting[T]) Get() T {
	st.bind()
	v, err := st.codec.decodeWith(st.dec)
	if err != nil {
		return st.def
	}
	return v
}

func (st *Setting[T]) Set(v T) {
	st.bind()
	st.codec.encodeWith(st.enc, v)
}

func (st *Setting[T]) Remove() {
	st.bind()
	st.codec.removeWith(st.rem)
}

// Exists reports whether a complete value is stored.
func (st *Setting[T]) Exists() bool {
	st.bind()
	_, err := st.codec.decodeWith(st.dec)
	return err == nil
}

// NullableSetting is a Setting whose absence is nil rather than a default.
type NullableSetting[T any] struct {
	inner *Setting[*T]
}

func NewNullableSetting[T any](s Settings, key string) *NullableSetting[T] {
	return &NullableSetting[T]{inner: NewSetting[*T](s, key, nil)}
}

func NewNullableSettingFunc[T any](s Settings, keyFunc func() string) *NullableSetting[T] {
	return &NullableSetting[T]{inner: NewSettingFunc[*T](s, keyFunc, nil)}
}

func (ns *NullableSetting[T]) Key() string  { return ns.inner.Key() }
func (ns *NullableSetting[T]) Get() *T      { return ns.inner.Get() }
func (ns *NullableSetting[T]) Exists() bool { return ns.inner.Exists() }
func (ns *NullableSetting[T]) Remove()      { ns.inner.Remove() }

// Set stores v, or removes the stored value when v is nil.
func (ns *NullableSetting[T]) Set(v *T) {
	if v == nil {
		ns.inner.Remove()
	} else {
		ns.inner.Set(v)
	}
}
