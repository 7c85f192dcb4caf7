package entity

// ColumnRoles names the table columns carrying each flight quantity.
type ColumnRoles struct {
	Latitude  string
	Longitude string
	Altitude  string
	Speed     string
	Mode      ResolveMode
}

// Empty reports whether none of the roles has been set.
func (r ColumnRoles) Empty() bool {
	return r.Latitude == "" && r.Longitude == "" && r.Altitude == "" && r.Speed == ""
}
