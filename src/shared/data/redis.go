package data

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	noncePrefix       = "nonce:"
	streamResolutions = "snowvote.resolutions"
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

func SetNonce(ctx context.Context, rdb *redis.Client, discordID, nonce string) error {
	return rdb.Set(ctx, noncePrefix+discordID, nonce, 5*time.Minute).Err()
}

func GetAndDelNonce(ctx context.Context, rdb *redis.Client, discordID string) (string, error) {
	return rdb.GetDel(ctx, noncePrefix+discordID).Result()
}

// ResolutionEvent is published on the resolutions stream whenever a
// proposal reaches a terminal status outside the Discord reaction path.
type ResolutionEvent struct {
	ProposalID  uint64
	CommunityID uint64
	Status      string
	Title       string
	Format      string
	Reason      string
}

func PublishResolution(ctx context.Context, rdb *redis.Client, ev ResolutionEvent) error {
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamResolutions,
		Values: map[string]interface{}{
			"proposal":  strconv.FormatUint(ev.ProposalID, 10),
			"community": strconv.FormatUint(ev.CommunityID, 10),
			"status":    ev.Status,
			"title":     ev.Title,
			"format":    ev.Format,
			"reason":    ev.Reason,
		},
	}).Result()
	return err
}

// ReadResolutions returns events published after lastID along with the id
// of the newest entry read. Pass "0" to read from the start of the stream.
func ReadResolutions(ctx context.Context, rdb *redis.Client, lastID string) ([]ResolutionEvent, string, error) {
	msgs, err := rdb.XRange(ctx, streamResolutions, "("+lastID, "+").Result()
	if err != nil {
		return nil, lastID, err
	}
	events := make([]ResolutionEvent, 0, len(msgs))
	for _, m := range msgs {
		events = append(events, ResolutionEvent{
			ProposalID:  parseStreamUint(m.Values["proposal"]),
			CommunityID: parseStreamUint(m.Values["community"]),
			Status:      streamString(m.Values["status"]),
			Title:       streamString(m.Values["title"]),
			Format:      streamString(m.Values["format"]),
			Reason:      streamString(m.Values["reason"]),
		})
		lastID = m.ID
	}
	return events, lastID, nil
}

func parseStreamUint(v interface{}) uint64 {
	s, _ := v.(string)
	n, _ := strconv.ParseUint(s, 10, 64)
	return n
}

func streamString(v interface{}) string {
	s, _ := v.(string)
	return s
}
