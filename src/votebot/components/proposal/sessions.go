package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	draftPrefix = "proposal:draft:"
	draftTTL    = 15 * time.Minute
)

// ErrDraftExpired is returned when a multi-step submission references a
// correlation id that no longer exists.
var ErrDraftExpired = errors.New("draft session expired or unknown")

// Draft is the state collected across the submission steps (modal, format
// select, contributor select) before a proposal row exists.
type Draft struct {
	GuildID     string `json:"guildId"`
	UserID      string `json:"userId"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Format      string `json:"format,omitempty"`
}

// DraftStore keeps drafts in redis under a generated correlation id with a
// TTL, so abandoned submissions evict themselves.
type DraftStore struct {
	rdb *redis.Client
}

func NewDraftStore(rdb *redis.Client) *DraftStore {
	return &DraftStore{rdb: rdb}
}

// Create stores a new draft and returns its correlation id.
func (st *DraftStore) Create(ctx context.Context, d Draft) (string, error) {
	id := uuid.NewString()
	if err := st.put(ctx, id, d); err != nil {
		return "", err
	}
	return id, nil
}

// Get loads a draft; missing or expired ids yield ErrDraftExpired.
func (st *DraftStore) Get(ctx context.Context, id string) (*Draft, error) {
	raw, err := st.rdb.Get(ctx, draftPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftExpired
	}
	if err != nil {
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save overwrites a draft and refreshes its TTL.
func (st *DraftStore) Save(ctx context.Context, id string, d Draft) error {
	return st.put(ctx, id, d)
}

func (st *DraftStore) Delete(ctx context.Context, id string) error {
	return st.rdb.Del(ctx, draftPrefix+id).Err()
}

func (st *DraftStore) put(ctx context.Context, id string, d Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return st.rdb.Set(ctx, draftPrefix+id, raw, draftTTL).Err()
}
