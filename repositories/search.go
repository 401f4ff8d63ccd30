//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_repository.go -package=mocks
package repositories

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"chat-hub/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

type ISearchRepository interface {
	IndexMessage(message domain.Message) error
	DeleteMessages(ids []uuid.UUID) error
	SearchMessages(ctx context.Context, roomID uuid.UUID, terms string, limit int) ([]SearchHit, error)
}

// SearchHit is one full-text match in a room's history.
type SearchHit struct {
	MessageID uuid.UUID `json:"message_id"`
	Sender    uuid.UUID `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchRepository maintains a Bluge index of message bodies alongside the
// durable store. Indexing is best-effort: a missed document degrades
// search, never delivery.
type SearchRepository struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger) *SearchRepository {
	return &SearchRepository{writer: writer, log: log}
}

func (s *SearchRepository) IndexMessage(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("room", message.ChatRoom.String())).
		AddField(bluge.NewStoredOnlyField("sender", []byte(message.Sender.String()))).
		AddField(bluge.NewStoredOnlyField("created_at",
			[]byte(strconv.FormatInt(message.CreatedAt.UnixNano(), 10))))

	return s.writer.Update(doc.ID(), doc)
}

func (s *SearchRepository) DeleteMessages(ids []uuid.UUID) error {
	for _, id := range ids {
		if err := s.writer.Delete(bluge.Identifier(id.String())); err != nil {
			return err
		}
	}
	return nil
}

// SearchMessages runs a match query over one room's message bodies.
func (s *SearchRepository) SearchMessages(ctx context.Context, roomID uuid.UUID, terms string, limit int) ([]SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(roomID.String()).SetField("room"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	match, err := iterator.Next()
	for err == nil && match != nil {
		var hit SearchHit
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID, _ = uuid.Parse(string(value))
			case "sender":
				hit.Sender, _ = uuid.Parse(string(value))
			case "content":
				hit.Content = string(value)
			case "created_at":
				if nanos, parseErr := strconv.ParseInt(string(value), 10, 64); parseErr == nil {
					hit.CreatedAt = time.Unix(0, nanos).UTC()
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}
