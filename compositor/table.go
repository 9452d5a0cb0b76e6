package compositor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// batchWriteLimit is DynamoDB's per-request cap on BatchWriteItem entries.
const batchWriteLimit = 25

// Table routes reads and writes for one DynamoDB table whose keys are
// composed from logical fields via the table's index templates.
type Table struct {
	client DynamoClient
	cfg    TableConfig
	logger zerolog.Logger
}

// NewTable creates a Table over the given client and schema.
func NewTable(client DynamoClient, cfg TableConfig) (*Table, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Table{
		client: client,
		cfg:    cfg,
		logger: zerolog.Nop(),
	}, nil
}

// SetLogger replaces the table's logger. The default discards everything.
func (t *Table) SetLogger(logger zerolog.Logger) {
	t.logger = logger
}

// Config returns the table's schema configuration.
func (t *Table) Config() TableConfig {
	return t.cfg
}

// BuildQueryCondition scores every index against the supplied field values
// and builds the winning index's key condition.
func (t *Table) BuildQueryCondition(values FieldValues, forceBeginsWith bool) (QueryArgs, error) {
	force := forceBeginsWith || t.cfg.ForceKeyBeginsWith
	sel := SelectIndex(t.cfg.PrimaryIndex, t.cfg.SecondaryIndexes, values, t.cfg.UniqueIDAttribute)

	t.logger.Debug().
		Str("table", t.cfg.TableName).
		Str("index", indexLabel(sel.Index)).
		Int("score", sel.Score).
		Bool("force_begins_with", force).
		Msg("selected query index")

	cond, err := sel.Index.KeyCondition(values, sel.Score, force)
	if err != nil {
		return QueryArgs{}, err
	}
	args := QueryArgs{KeyCondition: cond}
	if sel.Index.Role() != RolePrimary {
		name := sel.Index.Name()
		args.IndexName = &name
	}
	return args, nil
}

// PutOptions configures a Put.
type PutOptions struct {
	// Overwrite allows replacing an item that already exists under the same
	// composite key. When false, the primary index's not-equal guard is
	// attached and a collision returns ErrConditionalWriteFailed.
	Overwrite bool

	// LatestVersion, when set, skips the latest-version read: the new item is
	// written as version LatestVersion+1.
	LatestVersion *int

	// Transact writes the versioned item and the latest shadow item in a
	// single TransactWriteItems call instead of two sequential PutItems.
	Transact bool

	// Guard is an additional condition attached to every write. Callers that
	// need the latest-version read-modify-write to be safe against concurrent
	// writers supply their compare-and-swap expectation here.
	Guard *expression.ConditionBuilder
}

// Put writes an item composed from the supplied field values. On versioned
// tables it assigns the next version number and also writes the version-0
// "latest" shadow item.
//
// The next version is derived from a read of the shadow item followed by the
// writes; without a Guard or Transact this read-modify-write is not atomic
// and concurrent writers can race on version numbers.
func (t *Table) Put(ctx context.Context, values FieldValues, opts PutOptions) (FieldValues, error) {
	vals, err := t.stringify(Cleanup(values, true))
	if err != nil {
		return nil, err
	}

	if t.cfg.versioningEnabled() {
		next := 0
		if opts.LatestVersion != nil {
			next = *opts.LatestVersion + 1
		} else if next, err = t.NextVersion(ctx, vals); err != nil {
			return nil, err
		}
		vals = vals.With(t.cfg.VersioningAttribute, next)
	}

	items, err := t.composeWriteItems(vals)
	if err != nil {
		return nil, err
	}

	cond, err := t.writeCondition(vals, opts)
	if err != nil {
		return nil, err
	}

	if opts.Transact && len(items) > 1 {
		err = t.putTransact(ctx, items, cond)
	} else {
		err = t.putSequential(ctx, items, cond)
	}
	if err != nil {
		return nil, err
	}
	return t.destringify(vals)
}

// composeWriteItems builds the physical items for one logical write: the item
// itself and, on versioned tables, the version-0 shadow item whose
// latest-version attribute records the version just written.
func (t *Table) composeWriteItems(vals FieldValues) ([]FieldValues, error) {
	item := vals.Clone()
	if err := t.injectKeys(item); err != nil {
		return nil, err
	}
	items := []FieldValues{item}

	if t.cfg.versioningEnabled() {
		shadow := vals.Clone()
		shadow[t.cfg.VersioningAttribute] = 0
		if err := t.injectKeys(shadow); err != nil {
			return nil, err
		}
		shadow[t.cfg.LatestVersionAttribute] = vals[t.cfg.VersioningAttribute]
		items = append(items, shadow)
	}
	return items, nil
}

// injectKeys merges the synthesized key attributes of every index into item.
func (t *Table) injectKeys(item FieldValues) error {
	for _, ix := range t.allIndexes() {
		key, err := ix.FullKey(item)
		if err != nil {
			return err
		}
		for k, v := range key {
			item[k] = v
		}
	}
	return nil
}

func (t *Table) writeCondition(vals FieldValues, opts PutOptions) (*expression.ConditionBuilder, error) {
	var cond *expression.ConditionBuilder
	if !opts.Overwrite {
		ne, err := t.cfg.PrimaryIndex.NotEqualCondition(vals)
		if err != nil {
			return nil, err
		}
		cond = &ne
	}
	if opts.Guard != nil {
		if cond == nil {
			cond = opts.Guard
		} else {
			combined := cond.And(*opts.Guard)
			cond = &combined
		}
	}
	return cond, nil
}

func (t *Table) putSequential(ctx context.Context, items []FieldValues, cond *expression.ConditionBuilder) error {
	input := dynamodb.PutItemInput{TableName: aws.String(t.cfg.TableName)}
	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			return fmt.Errorf("keyloom: build write condition: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	for _, item := range items {
		av, err := attributevalue.MarshalMap(map[string]any(item))
		if err != nil {
			return fmt.Errorf("keyloom: marshal item: %w", err)
		}
		in := input
		in.Item = av

		t.logger.Debug().
			Str("table", t.cfg.TableName).
			Int("attributes", len(av)).
			Msg("putting item")

		if _, err := t.client.PutItem(ctx, &in); err != nil {
			return t.mapWriteError(err)
		}
	}
	return nil
}

func (t *Table) putTransact(ctx context.Context, items []FieldValues, cond *expression.ConditionBuilder) error {
	var condExpr *string
	var condNames map[string]string
	var condValues map[string]types.AttributeValue
	if cond != nil {
		expr, err := expression.NewBuilder().WithCondition(*cond).Build()
		if err != nil {
			return fmt.Errorf("keyloom: build write condition: %w", err)
		}
		condExpr = expr.Condition()
		condNames = expr.Names()
		condValues = expr.Values()
	}

	writes := make([]types.TransactWriteItem, 0, len(items))
	for _, item := range items {
		av, err := attributevalue.MarshalMap(map[string]any(item))
		if err != nil {
			return fmt.Errorf("keyloom: marshal item: %w", err)
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                 aws.String(t.cfg.TableName),
				Item:                      av,
				ConditionExpression:       condExpr,
				ExpressionAttributeNames:  condNames,
				ExpressionAttributeValues: condValues,
			},
		})
	}

	t.logger.Debug().
		Str("table", t.cfg.TableName).
		Int("items", len(writes)).
		Msg("putting items transactionally")

	if _, err := t.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes}); err != nil {
		return t.mapWriteError(err)
	}
	return nil
}

// NextVersion reads the latest shadow item for the supplied field values and
// returns its recorded version plus one. A missing shadow item yields 1.
func (t *Table) NextVersion(ctx context.Context, values FieldValues) (int, error) {
	if !t.cfg.versioningEnabled() {
		return 0, fmt.Errorf("%w: versioning is not enabled on table %s", ErrInvalidSchema, t.cfg.TableName)
	}

	probe := values.With(t.cfg.VersioningAttribute, 0)
	key, err := t.cfg.PrimaryIndex.FullKey(probe)
	if err != nil {
		return 0, err
	}

	proj := buildProjection([]string{t.cfg.LatestVersionAttribute})
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(t.cfg.TableName),
		Key:                      keyAttrValues(key),
		ProjectionExpression:     aws.String(proj.Expression),
		ExpressionAttributeNames: proj.Names,
	})
	if err != nil {
		return 0, err
	}
	if out.Item == nil {
		return 1, nil
	}
	if av, ok := out.Item[t.cfg.LatestVersionAttribute].(*types.AttributeValueMemberN); ok {
		if n, err := strconv.Atoi(av.Value); err == nil {
			return n + 1, nil
		}
	}
	return 1, nil
}

// GetOptions configures a Get.
type GetOptions struct {
	// ReturnFields limits the attributes retrieved. Defaults to the table's
	// declared attribute list.
	ReturnFields []string

	// ForceKeyBeginsWith forces a begins-with sort condition even when an
	// exact match is computable.
	ForceKeyBeginsWith bool

	// KeepEmptyValues disables the empty-string/map/slice to nil cleanup.
	KeepEmptyValues bool
}

// Get queries the items matching the supplied partial field values, routed
// through the best-scoring index. On versioned tables an absent versioning
// field defaults to 0, targeting the latest shadow item.
func (t *Table) Get(ctx context.Context, values FieldValues, opts GetOptions) ([]FieldValues, error) {
	vals := Cleanup(values, !opts.KeepEmptyValues)
	if t.cfg.versioningEnabled() {
		if _, ok := vals[t.cfg.VersioningAttribute]; !ok {
			vals = vals.With(t.cfg.VersioningAttribute, 0)
		}
	}

	fields := opts.ReturnFields
	if len(fields) == 0 {
		fields = t.cfg.Attributes
	}
	return t.query(ctx, vals, fields, opts.ForceKeyBeginsWith)
}

// query runs the composed key-condition query and unmarshals every page.
func (t *Table) query(ctx context.Context, vals FieldValues, returnFields []string, forceBeginsWith bool) ([]FieldValues, error) {
	args, err := t.BuildQueryCondition(vals, forceBeginsWith)
	if err != nil {
		return nil, err
	}
	expr, err := expression.NewBuilder().WithKeyCondition(args.KeyCondition).Build()
	if err != nil {
		return nil, fmt.Errorf("keyloom: build key condition: %w", err)
	}

	proj := buildProjection(returnFields)
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(t.cfg.TableName),
		IndexName:                 args.IndexName,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeValues: expr.Values(),
		ExpressionAttributeNames:  mergeExprNames(expr.Names(), proj.Names),
	}
	if proj.Expression != "" {
		input.ProjectionExpression = aws.String(proj.Expression)
	}

	var items []FieldValues
	paginator := dynamodb.NewQueryPaginator(t.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			var m map[string]any
			if err := attributevalue.UnmarshalMap(raw, &m); err != nil {
				return nil, fmt.Errorf("keyloom: unmarshal item: %w", err)
			}
			fv, err := t.destringify(FieldValues(m))
			if err != nil {
				return nil, err
			}
			items = append(items, fv)
		}
	}
	return items, nil
}

// Delete removes every stored item matching the supplied field values - on a
// versioned table that is the full version history plus the latest shadow
// item. It returns the logical values of the deleted item (the most recent
// version when versioning is enabled), or ErrNotFound.
func (t *Table) Delete(ctx context.Context, values FieldValues) (FieldValues, error) {
	vals := Cleanup(values, true)

	returnFields := append(t.allKeyFieldNames(), t.cfg.Attributes...)
	found, err := t.query(ctx, vals, returnFields, false)
	if err != nil {
		return nil, err
	}
	if len(found) < 1 {
		return nil, ErrNotFound
	}

	pi := t.cfg.PrimaryIndex
	var delItem FieldValues
	requests := make([]types.WriteRequest, 0, len(found))
	for _, item := range found {
		if (!t.cfg.versioningEnabled() && delItem == nil) || t.IsMostRecentVersion(item) {
			delItem = item.Clone()
		}

		key := map[string]types.AttributeValue{
			pi.PartitionKeyName(): &types.AttributeValueMemberS{Value: formatValue(item[pi.PartitionKeyName()])},
		}
		if pi.HasSortKey() {
			key[pi.SortKeyName()] = &types.AttributeValueMemberS{Value: formatValue(item[pi.SortKeyName()])}
		}

		t.logger.Debug().
			Str("table", t.cfg.TableName).
			Str("partition_key", formatValue(item[pi.PartitionKeyName()])).
			Str("sort_key", formatValue(item[pi.SortKeyName()])).
			Msg("deleting item")

		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: key},
		})
	}

	for start := 0; start < len(requests); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(requests))
		_, err := t.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{t.cfg.TableName: requests[start:end]},
		})
		if err != nil {
			return nil, err
		}
	}

	if delItem == nil {
		delItem = found[0].Clone()
	}
	for _, name := range t.allKeyFieldNames() {
		delete(delItem, name)
	}
	return delItem, nil
}

// Update merges the supplied field values into the stored item they address
// and writes the result back. On versioned tables the merge target is the
// latest shadow item and the write is assigned the next version number;
// forceOverwrite skips version assignment and overwrites in place.
func (t *Table) Update(ctx context.Context, values FieldValues, forceOverwrite bool) (FieldValues, error) {
	vals, err := t.stringify(Cleanup(values, true))
	if err != nil {
		return nil, err
	}

	probe := vals.Clone()
	returnFields := t.allKeyFieldNames()
	if t.cfg.versioningEnabled() && !forceOverwrite {
		probe[t.cfg.VersioningAttribute] = 0
		returnFields = append(returnFields, t.cfg.LatestVersionAttribute)
	}

	found, err := t.Get(ctx, probe, GetOptions{ReturnFields: returnFields})
	if err != nil {
		return nil, err
	}
	if len(found) < 1 {
		return nil, ErrNotFound
	}
	latest := found[0]

	extracted, err := t.FieldValuesFromItemKeys(latest)
	if err != nil {
		return nil, err
	}
	merged := vals.Clone()
	for k, v := range extracted {
		merged[k] = v
	}

	opts := PutOptions{Overwrite: true}
	if t.cfg.versioningEnabled() && !forceOverwrite {
		if n, ok := intFromValue(latest[t.cfg.LatestVersionAttribute]); ok {
			opts.LatestVersion = &n
		}
	}
	return t.Put(ctx, merged, opts)
}

// IsMostRecentVersion reports whether a stored item is the latest shadow
// record: its sort-key value must start with the prefix the winning index
// derives from a version-0 probe. Always false when versioning is disabled.
func (t *Table) IsMostRecentVersion(item FieldValues) bool {
	if !t.cfg.versioningEnabled() {
		return false
	}

	probe := FieldValues{t.cfg.VersioningAttribute: 0}
	for _, ix := range t.allIndexes() {
		if v, ok := item[ix.PartitionKeyName()]; ok {
			probe[ix.PartitionKeyName()] = v
		}
	}

	sel := SelectIndex(t.cfg.PrimaryIndex, t.cfg.SecondaryIndexes, probe, "")
	if !sel.Index.HasSortKey() {
		return false
	}
	sk, ok := item[sel.Index.SortKeyName()]
	if !ok {
		return false
	}
	return strings.HasPrefix(formatValue(sk), sel.Index.BestSortPrefix(probe))
}

// FieldValuesFromItemKeys recovers logical field values from the physical key
// attributes of a stored item by reverse-parsing each index's templates. The
// primary index's key attributes must be present; secondary key attributes
// are decoded when the item carries them.
func (t *Table) FieldValuesFromItemKeys(item FieldValues) (FieldValues, error) {
	keys := make(map[string]string)
	for _, ix := range t.allIndexes() {
		if v, ok := item[ix.PartitionKeyName()]; ok {
			keys[ix.PartitionKeyName()] = formatValue(v)
		}
		if ix.HasSortKey() {
			if v, ok := item[ix.SortKeyName()]; ok {
				keys[ix.SortKeyName()] = formatValue(v)
			}
		}
	}

	out := FieldValues{}
	extracted, err := t.cfg.PrimaryIndex.ExtractFieldValues(keys)
	if err != nil {
		return nil, err
	}
	for k, v := range extracted {
		out[k] = v
	}

	for _, ix := range t.cfg.SecondaryIndexes {
		if _, ok := keys[ix.PartitionKeyName()]; !ok {
			continue
		}
		if ix.HasSortKey() {
			if _, ok := keys[ix.SortKeyName()]; !ok {
				continue
			}
		}
		extracted, err := ix.ExtractFieldValues(keys)
		if err != nil {
			return nil, err
		}
		for k, v := range extracted {
			out[k] = v
		}
	}
	return out, nil
}

// ErrantFieldValues returns the supplied field names that are neither
// declared attributes nor referenced by any index template.
func (t *Table) ErrantFieldValues(values FieldValues) []string {
	known := t.allItemProperties()
	var errant []string
	for field := range values {
		if _, ok := known[field]; !ok {
			errant = append(errant, field)
		}
	}
	return errant
}

// ErrantReturnFields returns the requested projection fields that are neither
// declared attributes nor referenced by any index template.
func (t *Table) ErrantReturnFields(returnFields []string) []string {
	known := t.allItemProperties()
	var errant []string
	for _, field := range returnFields {
		if _, ok := known[field]; !ok {
			errant = append(errant, field)
		}
	}
	return errant
}

func (t *Table) allIndexes() []*Index {
	return append([]*Index{t.cfg.PrimaryIndex}, t.cfg.SecondaryIndexes...)
}

// allKeyFieldNames returns the physical key attribute names of every index,
// deduplicated.
func (t *Table) allKeyFieldNames() []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for _, ix := range t.allIndexes() {
		add(ix.PartitionKeyName())
		add(ix.SortKeyName())
	}
	return names
}

// allItemProperties returns the set of declared attributes plus every logical
// field referenced by any index template.
func (t *Table) allItemProperties() map[string]struct{} {
	known := make(map[string]struct{})
	for _, attr := range t.cfg.Attributes {
		known[attr] = struct{}{}
	}
	for _, ix := range t.allIndexes() {
		for _, f := range ix.PartitionKeyFields() {
			known[f] = struct{}{}
		}
		for _, f := range ix.SortKeyFields() {
			known[f] = struct{}{}
		}
	}
	return known
}

// stringify JSON-encodes the configured blob attributes that are not already
// strings.
func (t *Table) stringify(values FieldValues) (FieldValues, error) {
	if len(t.cfg.StringifyAttributes) == 0 {
		return values, nil
	}
	out := values.Clone()
	for _, attr := range t.cfg.StringifyAttributes {
		v, ok := out[attr]
		if !ok || v == nil {
			continue
		}
		if _, isString := v.(string); isString {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("keyloom: stringify %s: %w", attr, err)
		}
		out[attr] = string(b)
	}
	return out, nil
}

// destringify reverses stringify on items read back from storage.
func (t *Table) destringify(values FieldValues) (FieldValues, error) {
	if len(t.cfg.StringifyAttributes) == 0 {
		return values, nil
	}
	out := values.Clone()
	for _, attr := range t.cfg.StringifyAttributes {
		s, ok := out[attr].(string)
		if !ok || s == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("keyloom: destringify %s: %w", attr, err)
		}
		out[attr] = v
	}
	return out, nil
}

// mapWriteError translates a failed duplicate guard into
// ErrConditionalWriteFailed; everything else passes through.
func (t *Table) mapWriteError(err error) error {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrConditionalWriteFailed
	}
	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return ErrConditionalWriteFailed
			}
		}
	}
	return err
}

// keyAttrValues converts synthesized key strings to DynamoDB attributes.
func keyAttrValues(key map[string]string) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(key))
	for k, v := range key {
		out[k] = &types.AttributeValueMemberS{Value: v}
	}
	return out
}

func indexLabel(ix *Index) string {
	if ix.Role() == RolePrimary {
		return "primary"
	}
	return ix.Name()
}
