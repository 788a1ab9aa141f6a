package contract

// State is the kv view components read and write through. Writes land in the
// current call frame and only reach the Store once the top-level call commits.
type State interface {
	Set(key, value string)
	Get(key string) *string
	Delete(key string)
}

// Store is the durable substrate below the engine.
// Apply must persist the whole write set or nothing; a nil value deletes the key.
type Store interface {
	Get(key string) (*string, error)
	Apply(writes map[string]*string) error
}

// layer buffers writes on top of a parent layer (nested frame) or the store
// (root frame). Discarding a layer is just dropping it.
type layer struct {
	parent *layer
	store  Store
	writes map[string]*string
	err    error
}

func newRootLayer(store Store) *layer {
	return &layer{store: store, writes: map[string]*string{}}
}

func newLayer(parent *layer) *layer {
	return &layer{parent: parent, writes: map[string]*string{}}
}

func (l *layer) Get(key string) *string {
	if v, ok := l.writes[key]; ok {
		if v == nil {
			return nil
		}
		val := *v
		return &val
	}
	if l.parent != nil {
		return l.parent.Get(key)
	}
	v, err := l.store.Get(key)
	if err != nil {
		// remember the first read failure, the engine refuses to commit after it
		if l.err == nil {
			l.err = err
		}
		return nil
	}
	return v
}

func (l *layer) Set(key, value string) {
	l.writes[key] = &value
}

func (l *layer) Delete(key string) {
	l.writes[key] = nil
}

// merge folds this layer into its parent.
func (l *layer) merge() {
	for k, v := range l.writes {
		l.parent.writes[k] = v
	}
}

// scoped prefixes every key so each contract owns a private keyspace.
type scoped struct {
	st     State
	prefix string
}

func (s scoped) Set(key, value string) { s.st.Set(s.prefix+key, value) }
func (s scoped) Get(key string) *string { return s.st.Get(s.prefix + key) }
func (s scoped) Delete(key string)      { s.st.Delete(s.prefix + key) }
