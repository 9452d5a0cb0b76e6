// Package compositor is a composite-key query-routing layer for DynamoDB
// tables whose physical keys are composed from logical fields.
//
// A table schema declares, per index, a partition-key template and an
// optional sort-key template: literal text interleaved with {field}
// placeholders, e.g.
//
//	"datadefinition:v{version}:{flowFilterId}:{id}"
//
// Given a partial set of field values, the package
//
//   - synthesizes the physical key attributes for writes,
//   - scores every index by how well the fields match its templates, picks
//     the best one, and builds the tightest correct key condition (equality
//     or begins-with) for reads, and
//   - reverse-parses physical key strings back into logical field values.
//
// # Indexes and scoring
//
// Construct indexes with [NewPrimaryIndex], [NewGlobalSecondaryIndex] and
// [NewLocalSecondaryIndex]. An index whose partition-key fields are not all
// supplied scores 0 and is never selected. Among usable indexes, deeper
// contiguous matches of the sort-key fields score higher, and a supplied
// unique-id field earns a position-weighted bonus because it narrows the
// query toward a single item. The primary index wins ties.
//
// # Table operations
//
// [Table] wraps a [DynamoClient] with put, query, update and delete
// orchestration. Tables with a latest-version attribute are versioned: every
// write is assigned the next sequential version and duplicated into a
// version-0 "latest" shadow item, so the most recent version is readable
// with a single point lookup.
//
// The next version is computed by reading the shadow item and incrementing;
// the subsequent writes are not atomic with that read. Callers that need
// protection against concurrent writers supply a compare-and-swap condition
// via [PutOptions].Guard, or set [PutOptions].Transact to write both items
// in one transaction.
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - no stored item matches the supplied fields
//   - [ErrConditionalWriteFailed] - a duplicate-prevention guard rejected a write
//   - [ErrUnknownIndexRole] - index constructed with an unrecognized role
//   - [ErrInvalidSchema] - inconsistent index or table definition
//   - [MissingFieldError] - a template field is absent from the value map
//   - [ReverseParseMismatchError] - a stored key does not match its template
package compositor
