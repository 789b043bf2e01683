package store

import "sync"

// Listener is notified after the store state changes. Callbacks run
// synchronously on the goroutine that called Load or SelectLanguage, after
// the new state is visible to readers.
type Listener interface {
	OnConfigLoaded()
	OnConfigLanguageSelected()
}

// ListenerFuncs adapts plain functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Loaded           func()
	LanguageSelected func()
}

func (f ListenerFuncs) OnConfigLoaded() {
	if f.Loaded != nil {
		f.Loaded()
	}
}

func (f ListenerFuncs) OnConfigLanguageSelected() {
	if f.LanguageSelected != nil {
		f.LanguageSelected()
	}
}

// AddListener registers l and returns a function that removes it. Calling
// the returned function more than once is harmless.
func (s *Store) AddListener(l Listener) (remove func()) {
	return s.listeners.add(l)
}

type listenerSet struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]Listener
	order  []int
}

func (ls *listenerSet) add(l Listener) func() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.byID == nil {
		ls.byID = make(map[int]Listener)
	}
	id := ls.nextID
	ls.nextID++
	ls.byID[id] = l
	ls.order = append(ls.order, id)

	return func() {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		if _, ok := ls.byID[id]; !ok {
			return
		}
		delete(ls.byID, id)
		for i, other := range ls.order {
			if other == id {
				ls.order = append(ls.order[:i], ls.order[i+1:]...)
				break
			}
		}
	}
}

// list copies the registered listeners so callbacks may add or remove
// listeners without deadlocking.
func (ls *listenerSet) list() []Listener {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]Listener, 0, len(ls.order))
	for _, id := range ls.order {
		out = append(out, ls.byID[id])
	}
	return out
}

func (ls *listenerSet) notifyLoaded() {
	for _, l := range ls.list() {
		l.OnConfigLoaded()
	}
}

func (ls *listenerSet) notifyLanguageSelected() {
	for _, l := range ls.list() {
		l.OnConfigLanguageSelected()
	}
}
