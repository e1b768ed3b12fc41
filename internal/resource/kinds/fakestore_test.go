package kinds

import (
	"fmt"
	"sync"
)

// fakeStore is an in-memory store.Store used by kind tests so they do
// not touch the filesystem. Tests that don't care about actual file
// contents can pass the zero value's pointer via newFakeStore().
type fakeStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string][]byte)}
}

func (f *fakeStore) Upload(name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.files[name] = append([]byte(nil), data...)
	return name, nil
}

func (f *fakeStore) Download(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("fakeStore: %q not found", name)
	}
	return data, nil
}

func (f *fakeStore) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
	return nil
}

func (f *fakeStore) URL(name string) string {
	return "http://fake/file/" + name
}
