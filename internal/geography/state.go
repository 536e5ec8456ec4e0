package geography

// State is an immutable snapshot of the four collections and the selected code at each level.
// Methods return new values; slices are replaced, never modified in place.
type State struct {
	Regions   []Unit
	Provinces []Unit
	Cities    []Unit
	Barangays []Unit

	Region   string
	Province string
	City     string
	Barangay string
}

// Units returns the collection for a level.
func (s State) Units(level Level) []Unit {
	switch level {
	case Region:
		return s.Regions
	case Province:
		return s.Provinces
	case City:
		return s.Cities
	case Barangay:
		return s.Barangays
	}
	return nil
}

// Selected returns the selected code at a level, or "".
func (s State) Selected(level Level) string {
	switch level {
	case Region:
		return s.Region
	case Province:
		return s.Province
	case City:
		return s.City
	case Barangay:
		return s.Barangay
	}
	return ""
}

// Lookup finds a unit by code in the collection for a level.
func (s State) Lookup(level Level, code string) (Unit, bool) {
	for _, unit := range s.Units(level) {
		if unit.Code == code {
			return unit, true
		}
	}
	return Unit{}, false
}

// WithUnits replaces the collection for a level.
func (s State) WithUnits(level Level, units []Unit) State {
	switch level {
	case Region:
		s.Regions = units
	case Province:
		s.Provinces = units
	case City:
		s.Cities = units
	case Barangay:
		s.Barangays = units
	}
	return s
}

// WithSelection records code at level and clears every collection and selection below it.
func (s State) WithSelection(level Level, code string) State {
	switch level {
	case Region:
		s.Region = code
	case Province:
		s.Province = code
	case City:
		s.City = code
	case Barangay:
		s.Barangay = code
	}
	return s.clearBelow(level)
}

func (s State) clearBelow(level Level) State {
	for l, ok := level.Child(); ok; l, ok = l.Child() {
		s = s.WithUnits(l, nil)
		switch l {
		case Province:
			s.Province = ""
		case City:
			s.City = ""
		case Barangay:
			s.Barangay = ""
		}
	}
	return s
}
