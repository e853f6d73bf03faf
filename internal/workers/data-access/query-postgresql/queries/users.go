package queries

import (
	"context"
	"time"
)

// MyList returns a user's list in position order.
func MyList(ctx context.Context, st Store, params map[string]interface{}) (interface{}, int, int64, error) {
	userID, err := stringParam(params, "userId")
	if err != nil {
		return nil, 0, 0, err
	}

	start := time.Now()

	entries, err := st.MyList(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	return entries, len(entries), time.Since(start).Milliseconds(), nil
}

// UserRatings returns a user's ratings, newest first.
func UserRatings(ctx context.Context, st Store, params map[string]interface{}) (interface{}, int, int64, error) {
	userID, err := stringParam(params, "userId")
	if err != nil {
		return nil, 0, 0, err
	}

	start := time.Now()

	rs, err := st.UserRatings(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	return rs, len(rs), time.Since(start).Milliseconds(), nil
}
