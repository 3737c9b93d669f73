package wrapper

// Ownership records which side destroys the native allocation.
type Ownership uint8

const (
	// OwnershipNone means nobody owns the allocation, typically because the
	// wrapper holds a null pointer.
	OwnershipNone Ownership = iota
	// OwnershipWrapper means the wrapper runs the native destructor when it
	// is swept.
	OwnershipWrapper
	// OwnershipNative means the native side (or a parent container) destroys
	// the allocation.
	OwnershipNative
)

func (o Ownership) String() string {
	switch o {
	case OwnershipNone:
		return "none"
	case OwnershipWrapper:
		return "wrapper"
	case OwnershipNative:
		return "native"
	default:
		return "unknown"
	}
}

// Event is a lifecycle notification delivered to an Observer.
type Event uint8

const (
	EventBound Event = iota + 1
	EventInvalidated
	EventOwnershipChanged
	EventParentChanged
	EventReferenceKept
	EventReferenceReleased
	EventDestructorCalled
	EventDeallocated
)

func (e Event) String() string {
	switch e {
	case EventBound:
		return "bound"
	case EventInvalidated:
		return "invalidated"
	case EventOwnershipChanged:
		return "ownership_changed"
	case EventParentChanged:
		return "parent_changed"
	case EventReferenceKept:
		return "reference_kept"
	case EventReferenceReleased:
		return "reference_released"
	case EventDestructorCalled:
		return "destructor_called"
	case EventDeallocated:
		return "deallocated"
	default:
		return "unknown"
	}
}

// Observer receives lifecycle events. Observe is called synchronously from
// the mutating operation and must not call back into the Manager.
type Observer interface {
	Observe(ev Event, obj *Object)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event, obj *Object)

func (f ObserverFunc) Observe(ev Event, obj *Object) { f(ev, obj) }

// Observers fans every event out to each observer in order.
type Observers []Observer

func (os Observers) Observe(ev Event, obj *Object) {
	for _, o := range os {
		if o != nil {
			o.Observe(ev, obj)
		}
	}
}
