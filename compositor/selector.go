package compositor

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// Selection is the outcome of ranking a table's indexes against a partial
// field set.
type Selection struct {
	Index *Index
	Score int
}

// QueryArgs carries the chosen index and key condition for a storage query.
// IndexName is nil when the primary index was selected.
type QueryArgs struct {
	IndexName    *string
	KeyCondition expression.KeyConditionBuilder
}

// SelectIndex scores the primary index and every secondary index against the
// supplied field values and returns the winner. The primary index wins ties;
// among secondaries, the first-declared index with the strictly highest score
// wins.
func SelectIndex(primary *Index, secondaries []*Index, values FieldValues, uniqueIDField string) Selection {
	primaryScore := primary.QueryScore(values, uniqueIDField)

	bestScore, bestIdx := -1, -1
	for i, ix := range secondaries {
		if s := ix.QueryScore(values, uniqueIDField); s > bestScore {
			bestScore, bestIdx = s, i
		}
	}

	if bestIdx < 0 || primaryScore >= bestScore {
		return Selection{Index: primary, Score: primaryScore}
	}
	return Selection{Index: secondaries[bestIdx], Score: bestScore}
}

// BuildQueryCondition runs index selection and builds the winning index's key
// condition at the correct specificity. Indexes other than the primary carry
// their name in the result so the storage query targets them.
func BuildQueryCondition(primary *Index, secondaries []*Index, values FieldValues, uniqueIDField string, forceBeginsWith bool) (QueryArgs, error) {
	sel := SelectIndex(primary, secondaries, values, uniqueIDField)

	cond, err := sel.Index.KeyCondition(values, sel.Score, forceBeginsWith)
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
