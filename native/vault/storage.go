package vault

// Storage abstracts the subset of key-value functionality the vault ledgers
// require. The engine never commits through this interface directly; every
// mutating entry point runs against an overlay and flushes on success only.
type Storage interface {
	KVGet(key []byte) ([]byte, bool, error)
	KVPut(key []byte, value []byte) error
	KVDelete(key []byte) error
}

// stateOverlay buffers writes and deletes on top of a parent Storage so a
// failed operation leaves the parent untouched. Reads see buffered state
// first.
type stateOverlay struct {
	parent  Storage
	writes  map[string][]byte
	deletes map[string]struct{}
	order   []string
}

func newOverlay(parent Storage) *stateOverlay {
	return &stateOverlay{
		parent:  parent,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *stateOverlay) KVGet(key []byte) ([]byte, bool, error) {
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		return nil, false, nil
	}
	if v, ok := o.writes[k]; ok {
		return append([]byte(nil), v...), true, nil
	}
	return o.parent.KVGet(key)
}

func (o *stateOverlay) KVPut(key []byte, value []byte) error {
	k := string(key)
	if _, ok := o.writes[k]; !ok {
		if _, gone := o.deletes[k]; !gone {
			o.order = append(o.order, k)
		}
	}
	delete(o.deletes, k)
	o.writes[k] = append([]byte(nil), value...)
	return nil
}

func (o *stateOverlay) KVDelete(key []byte) error {
	k := string(key)
	if _, ok := o.writes[k]; !ok {
		if _, gone := o.deletes[k]; !gone {
			o.order = append(o.order, k)
		}
	}
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

// flush applies the buffered mutations to the parent in first-touch order.
func (o *stateOverlay) flush() error {
	for _, k := range o.order {
		if _, gone := o.deletes[k]; gone {
			if err := o.parent.KVDelete([]byte(k)); err != nil {
				return err
			}
			continue
		}
		if v, ok := o.writes[k]; ok {
			if err := o.parent.KVPut([]byte(k), v); err != nil {
				return err
			}
		}
	}
	return nil
}
