package models

// All returns every model that needs migration, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Dealership{},
		&User{},
		&Client{},
		&Vehicle{},
		&Deal{},
		&DocumentTemplate{},
		&DocumentInstance{},
		&DocumentPack{},
	}
}
