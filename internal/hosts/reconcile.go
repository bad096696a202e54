package hosts

// Update reconciles the managed entries of zone with records.
//
// Entries of zone whose address is in records get the desired hostnames and
// keep their position; entries whose address is not in records are removed.
// Addresses left over are appended as new entries in records order. Opaque
// lines and entries of other zones are never touched. records is not
// modified; a nil records removes every entry of zone.
func (d *Document) Update(zone string, records *Records) {
	if records == nil {
		records = NewRecords()
	}

	addresses := records.Addresses()
	remaining := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		remaining[addr] = struct{}{}
	}

	result := make([]Line, 0, len(d.lines)+records.Len())
	for _, l := range d.lines {
		if l.Entry == nil || !l.Entry.InZone(zone) {
			result = append(result, l)
			continue
		}

		if _, ok := remaining[l.Entry.Address]; !ok {
			continue
		}
		delete(remaining, l.Entry.Address)

		names, _ := records.Get(l.Entry.Address)
		l.Entry.Hostnames = append([]string(nil), names...)
		result = append(result, l)
	}

	for _, addr := range addresses {
		if _, ok := remaining[addr]; !ok {
			continue
		}
		names, _ := records.Get(addr)
		result = append(result, Line{Entry: &Entry{
			Address:   addr,
			Hostnames: append([]string(nil), names...),
			Comment:   Marker(zone),
		}})
	}

	d.lines = result
}
