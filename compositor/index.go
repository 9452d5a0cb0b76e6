package compositor

import (
	"fmt"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// IndexRole identifies the kind of a table index. The role determines the
// index's priority during tie-breaking: primary beats global secondary beats
// local secondary.
type IndexRole int

const (
	RolePrimary IndexRole = iota + 1
	RoleGlobalSecondary
	RoleLocalSecondary
)

// Priority returns the tie-break priority of the role.
func (r IndexRole) Priority() int {
	switch r {
	case RolePrimary:
		return 100
	case RoleGlobalSecondary:
		return 90
	case RoleLocalSecondary:
		return 80
	}
	return 0
}

func (r IndexRole) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleGlobalSecondary:
		return "global-secondary"
	case RoleLocalSecondary:
		return "local-secondary"
	}
	return fmt.Sprintf("IndexRole(%d)", int(r))
}

// Index pairs a partition-key template with an optional sort-key template,
// a role, and the separator character used to delimit composite segments.
// Indexes are immutable once constructed.
type Index struct {
	role             IndexRole
	name             string
	partitionKeyName string
	partitionKey     KeyTemplate
	sortKeyName      string
	sortKey          KeyTemplate
	separator        string
}

// NewIndex constructs an index from its key names and template strings.
// Non-primary indexes must be named. A separator is required whenever either
// template contains two or more placeholders, or both templates contain at
// least one placeholder.
func NewIndex(role IndexRole, partitionKeyName, partitionKeyFormat, sortKeyName, sortKeyFormat, name, separator string) (*Index, error) {
	if role.Priority() == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownIndexRole, int(role))
	}
	if role != RolePrimary && name == "" {
		return nil, fmt.Errorf("%w: %s index requires a name", ErrInvalidSchema, role)
	}
	if partitionKeyName == "" {
		return nil, fmt.Errorf("%w: partition key name is required", ErrInvalidSchema)
	}
	if sortKeyName == "" && sortKeyFormat != "" {
		return nil, fmt.Errorf("%w: sort key format given without a sort key name", ErrInvalidSchema)
	}

	ix := &Index{
		role:             role,
		name:             name,
		partitionKeyName: partitionKeyName,
		partitionKey:     NewKeyTemplate(partitionKeyFormat),
		sortKeyName:      sortKeyName,
		sortKey:          NewKeyTemplate(sortKeyFormat),
		separator:        separator,
	}

	if ix.separatorRequired() && separator == "" {
		return nil, fmt.Errorf("%w: composite separator is required for templates %q / %q",
			ErrInvalidSchema, partitionKeyFormat, sortKeyFormat)
	}
	return ix, nil
}

// NewPrimaryIndex constructs the table's primary index.
func NewPrimaryIndex(partitionKeyName, partitionKeyFormat, sortKeyName, sortKeyFormat, separator string) (*Index, error) {
	return NewIndex(RolePrimary, partitionKeyName, partitionKeyFormat, sortKeyName, sortKeyFormat, "", separator)
}

// NewGlobalSecondaryIndex constructs a named global secondary index.
func NewGlobalSecondaryIndex(name, partitionKeyName, partitionKeyFormat, sortKeyName, sortKeyFormat, separator string) (*Index, error) {
	return NewIndex(RoleGlobalSecondary, partitionKeyName, partitionKeyFormat, sortKeyName, sortKeyFormat, name, separator)
}

// NewLocalSecondaryIndex constructs a named local secondary index.
func NewLocalSecondaryIndex(name, partitionKeyName, partitionKeyFormat, sortKeyName, sortKeyFormat, separator string) (*Index, error) {
	return NewIndex(RoleLocalSecondary, partitionKeyName, partitionKeyFormat, sortKeyName, sortKeyFormat, name, separator)
}

// separatorRequired applies the schema rule: a separator is mandatory when a
// single key segment concatenates multiple fields, or when both key segments
// are templated.
func (ix *Index) separatorRequired() bool {
	p := ix.partitionKey.NumFields()
	s := ix.sortKey.NumFields()
	return p >= 2 || s >= 2 || (p >= 1 && s >= 1)
}

// Role returns the index role.
func (ix *Index) Role() IndexRole { return ix.role }

// Name returns the index name. The primary index has no name.
func (ix *Index) Name() string { return ix.name }

// PartitionKeyName returns the physical attribute name of the partition key.
func (ix *Index) PartitionKeyName() string { return ix.partitionKeyName }

// SortKeyName returns the physical attribute name of the sort key, or "".
func (ix *Index) SortKeyName() string { return ix.sortKeyName }

// HasSortKey reports whether the index declares a sort key.
func (ix *Index) HasSortKey() bool { return ix.sortKeyName != "" }

// PartitionKeyFields returns the partition template's field names in order.
func (ix *Index) PartitionKeyFields() []string { return ix.partitionKey.Fields() }

// SortKeyFields returns the sort template's field names in order.
func (ix *Index) SortKeyFields() []string { return ix.sortKey.Fields() }

// PartitionKeyValue formats the partition key from values, keyed by its
// physical attribute name.
func (ix *Index) PartitionKeyValue(values FieldValues) (map[string]string, error) {
	v, err := ix.partitionKey.Format(values)
	if err != nil {
		return nil, err
	}
	return map[string]string{ix.partitionKeyName: v}, nil
}

// SortKeyValue formats the sort key from values, keyed by its physical
// attribute name. Indexes without a sort key return an empty map.
func (ix *Index) SortKeyValue(values FieldValues) (map[string]string, error) {
	if !ix.HasSortKey() {
		return map[string]string{}, nil
	}
	v, err := ix.sortKey.Format(values)
	if err != nil {
		return nil, err
	}
	return map[string]string{ix.sortKeyName: v}, nil
}

// FullKey synthesizes the complete physical key for this index: the
// partition-key attribute plus, when present, the sort-key attribute.
func (ix *Index) FullKey(values FieldValues) (map[string]string, error) {
	key, err := ix.PartitionKeyValue(values)
	if err != nil {
		return nil, err
	}
	sk, err := ix.SortKeyValue(values)
	if err != nil {
		return nil, err
	}
	for k, v := range sk {
		key[k] = v
	}
	return key, nil
}

// ExtractFieldValues reverses FullKey: given the physical key attribute
// strings of a stored item, it decodes the logical field values they encode.
func (ix *Index) ExtractFieldValues(keys map[string]string) (map[string]string, error) {
	pk, ok := keys[ix.partitionKeyName]
	if !ok {
		return nil, &ReverseParseMismatchError{Template: ix.partitionKey.raw, Literal: ix.partitionKeyName}
	}
	out, err := ix.partitionKey.ReverseParse(pk)
	if err != nil {
		return nil, err
	}
	if !ix.HasSortKey() {
		return out, nil
	}
	sk, ok := keys[ix.sortKeyName]
	if !ok {
		return nil, &ReverseParseMismatchError{Template: ix.sortKey.raw, Literal: ix.sortKeyName}
	}
	fromSort, err := ix.sortKey.ReverseParse(sk)
	if err != nil {
		return nil, err
	}
	for k, v := range fromSort {
		out[k] = v
	}
	return out, nil
}

// NotEqualCondition builds the optimistic "item does not already exist" guard
// for this index: partition key not equal to its formatted value, AND-ed with
// the same predicate on the sort key when one exists.
func (ix *Index) NotEqualCondition(values FieldValues) (expression.ConditionBuilder, error) {
	pk, err := ix.partitionKey.Format(values)
	if err != nil {
		return expression.ConditionBuilder{}, err
	}
	cond := expression.Name(ix.partitionKeyName).NotEqual(expression.Value(pk))

	if ix.HasSortKey() {
		sk, err := ix.sortKey.Format(values)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		cond = cond.And(expression.Name(ix.sortKeyName).NotEqual(expression.Value(sk)))
	}
	return cond, nil
}

// BestSortPrefix returns the longest sort-key prefix derivable from values.
func (ix *Index) BestSortPrefix(values FieldValues) string {
	return ix.sortKey.BestPrefix(values)
}

// KeyCondition builds the tightest correct key condition for this index given
// a partial field set and its query score. The partition key is always an
// equality; the sort key is an equality when the score is exactly 100 and
// prefix mode is not forced, and a begins-with on the best derivable prefix
// otherwise. When forceBeginsWith is set the prefix is trimmed of any
// trailing separator so it ends on a complete segment.
func (ix *Index) KeyCondition(values FieldValues, score int, forceBeginsWith bool) (expression.KeyConditionBuilder, error) {
	pk, err := ix.partitionKey.Format(values)
	if err != nil {
		return expression.KeyConditionBuilder{}, err
	}
	key := expression.KeyEqual(expression.Key(ix.partitionKeyName), expression.Value(pk))

	if !ix.HasSortKey() {
		return key, nil
	}

	if score == 100 && !forceBeginsWith {
		sk, err := ix.sortKey.Format(values)
		if err != nil {
			return expression.KeyConditionBuilder{}, err
		}
		return key.And(expression.KeyEqual(expression.Key(ix.sortKeyName), expression.Value(sk))), nil
	}

	prefix := ix.sortKey.BestPrefix(values)
	if forceBeginsWith && ix.separator != "" {
		prefix = strings.TrimRight(prefix, ix.separator)
	}
	return key.And(expression.KeyBeginsWith(expression.Key(ix.sortKeyName), prefix)), nil
}

// QueryScore rates how well a partial field set matches this index's key
// templates.
//
// An index whose partition-key fields are not all present scores 0: it cannot
// be queried at all. Otherwise the score rewards deeper contiguous matches of
// the sort-key fields (matched in template order, stopping at the first gap),
// normalized against the sort template's field count. When uniqueIDField is
// one of the key fields and supplied, a position-weighted bonus favors
// indexes where it appears earlier in the template, since such a match
// narrows the query toward a single item. Scores above 100 are possible when
// the bonus applies; the selector only compares them relatively.
func (ix *Index) QueryScore(values FieldValues, uniqueIDField string) int {
	score := 0.0

	pf := ix.partitionKey.fields
	for _, f := range pf {
		if _, ok := values[f]; !ok {
			return 0
		}
	}

	if pos := fieldPosition(pf, uniqueIDField); pos >= 0 {
		if _, ok := values[uniqueIDField]; ok {
			score += 200 * float64(len(pf)-pos) / float64(len(pf))
		}
	}

	sf := ix.sortKey.fields
	if len(sf) < 1 || !anyFieldPresent(sf, values) {
		return int(math.Round(score))
	}

	for _, f := range sf {
		if _, ok := values[f]; !ok {
			break
		}
		score++
	}
	score = score / float64(len(sf)) * 100

	if pos := fieldPosition(sf, uniqueIDField); pos >= 0 {
		if _, ok := values[uniqueIDField]; ok {
			score += 100 * float64(len(sf)-pos) / float64(len(sf))
		}
	}
	return int(math.Round(score))
}

func fieldPosition(fields []string, name string) int {
	if name == "" {
		return -1
	}
	for i, f := range fields {
		if f == name {
			return i
		}
	}
	return -1
}

func anyFieldPresent(fields []string, values FieldValues) bool {
	for _, f := range fields {
		if _, ok := values[f]; ok {
			return true
		}
	}
	return false
}
