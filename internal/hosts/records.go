package hosts

// Records maps addresses to hostnames. Addresses iterate in the order they
// were first added, which fixes the order of entries appended by Update.
type Records struct {
	order []string
	names map[string][]string
}

// NewRecords returns an empty Records.
func NewRecords() *Records {
	return &Records{names: make(map[string][]string)}
}

// Add appends hostnames to address, registering the address if it is new.
func (r *Records) Add(address string, hostnames ...string) {
	if _, ok := r.names[address]; !ok {
		r.order = append(r.order, address)
	}
	r.names[address] = append(r.names[address], hostnames...)
}

// Set replaces the hostnames of address.
func (r *Records) Set(address string, hostnames []string) {
	if _, ok := r.names[address]; !ok {
		r.order = append(r.order, address)
	}
	r.names[address] = append([]string(nil), hostnames...)
}

// Get returns the hostnames of address.
func (r *Records) Get(address string) ([]string, bool) {
	names, ok := r.names[address]
	return names, ok
}

// Addresses returns the addresses in insertion order.
func (r *Records) Addresses() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of addresses.
func (r *Records) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
