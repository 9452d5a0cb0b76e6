package compositor

import "fmt"

// TableConfig describes a compositor table: its physical name, its indexes,
// and the logical attribute surface the indexes compose keys from.
type TableConfig struct {
	// TableName is the DynamoDB table name.
	TableName string

	// PrimaryIndex is the table's sole primary index.
	PrimaryIndex *Index

	// SecondaryIndexes are the table's global/local secondary indexes, in
	// declaration order. Declaration order breaks score ties.
	SecondaryIndexes []*Index

	// Attributes lists the logical attribute names stored on items beyond the
	// key fields. Used for the default projection and errant-field checks.
	Attributes []string

	// UniqueIDAttribute names the field granted score priority: supplying it
	// narrows a query to at most one logical item. Optional.
	UniqueIDAttribute string

	// StringifyAttributes lists attributes whose values are JSON-stringified
	// on write and parsed back on read.
	StringifyAttributes []string

	// LatestVersionAttribute enables versioning when set: every write also
	// maintains a version-0 "latest" shadow item carrying this attribute.
	LatestVersionAttribute string

	// VersioningAttribute names the field holding an item's version number.
	// Required when LatestVersionAttribute is set.
	VersioningAttribute string

	// TTLAttribute names the table's time-to-live attribute, if any.
	TTLAttribute string

	// ForceKeyBeginsWith makes every query use a begins-with sort condition
	// even when an exact match is computable.
	ForceKeyBeginsWith bool
}

// validate checks the schema invariants that construction-time errors should
// catch rather than first use.
func (c *TableConfig) validate() error {
	if c.TableName == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidSchema)
	}
	if c.PrimaryIndex == nil {
		return fmt.Errorf("%w: primary index is required", ErrInvalidSchema)
	}
	if c.PrimaryIndex.Role() != RolePrimary {
		return fmt.Errorf("%w: primary index has role %s", ErrInvalidSchema, c.PrimaryIndex.Role())
	}
	for _, ix := range c.SecondaryIndexes {
		if ix.Role() == RolePrimary {
			return fmt.Errorf("%w: secondary index list contains a primary index", ErrInvalidSchema)
		}
	}
	if c.LatestVersionAttribute != "" && c.VersioningAttribute == "" {
		return fmt.Errorf("%w: versioning attribute is required when latest-version attribute is set", ErrInvalidSchema)
	}
	return nil
}

// versioningEnabled reports whether the table maintains latest shadow items.
func (c *TableConfig) versioningEnabled() bool {
	return c.LatestVersionAttribute != ""
}
