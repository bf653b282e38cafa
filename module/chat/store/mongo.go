package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"socialchat/data/database"
	"socialchat/module/chat/model"
	"socialchat/tools/errs"
)

// DBSource yields the live database handle. The mongo connection manager
// replaces its client after a reconnect, so the handle is looked up on
// every call instead of being kept.
type DBSource interface {
	TryGetDB() (*mongo.Database, bool)
}

type staticDB struct{ db *mongo.Database }

func (s staticDB) TryGetDB() (*mongo.Database, bool) { return s.db, s.db != nil }

// Mongo is the document backend. Participants are embedded in the
// conversation document.
type Mongo struct {
	src DBSource
}

// NewMongo binds a fixed database handle.
func NewMongo(db *mongo.Database) *Mongo {
	return NewMongoFrom(staticDB{db})
}

func NewMongoFrom(src DBSource) *Mongo {
	return &Mongo{src: src}
}

func (s *Mongo) database() (*mongo.Database, error) {
	db, ok := s.src.TryGetDB()
	if !ok {
		return nil, errs.New("mongo not connected")
	}
	return db, nil
}

func (s *Mongo) collection(t database.Table) (*mongo.Collection, error) {
	db, err := s.database()
	if err != nil {
		return nil, err
	}
	return db.Collection(t.GetTableName()), nil
}

func (s *Mongo) users() (*mongo.Collection, error) { return s.collection(&model.User{}) }
func (s *Mongo) convs() (*mongo.Collection, error) { return s.collection(&model.Conversation{}) }
func (s *Mongo) msgs() (*mongo.Collection, error)  { return s.collection(&model.Message{}) }

// EnsureIndexes creates the indexes the queries below rely on.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	convs, err := s.convs()
	if err != nil {
		return err
	}
	msgs, err := s.msgs()
	if err != nil {
		return err
	}
	if _, err := convs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		// groups carry no pair_key, so the index is sparse
		{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	}); err != nil {
		return errs.WrapMsg(err, "conversation indexes")
	}
	if _, err := msgs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "seq", Value: -1}},
	}); err != nil {
		return errs.WrapMsg(err, "message indexes")
	}
	return nil
}

func (s *Mongo) Users() UserStore                 { return mgoUsers{s} }
func (s *Mongo) Conversations() ConversationStore { return mgoConvs{s} }
func (s *Mongo) Messages() MessageStore           { return mgoMsgs{s} }

func (s *Mongo) Ping(ctx context.Context) error {
	db, err := s.database()
	if err != nil {
		return err
	}
	return db.Client().Ping(ctx, nil)
}

// Close is a no-op; the client belongs to the connection manager.
func (s *Mongo) Close(context.Context) error { return nil }

type mgoUsers struct{ *Mongo }

func (s mgoUsers) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	out := make([]*model.User, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := s.users()
	if err != nil {
		return nil, err
	}
	cur, err := users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errs.WrapMsg(err, "find users")
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode users")
	}
	for _, u := range out {
		u.Gender = model.ParseGender(string(u.Gender))
	}
	return out, nil
}

func (s mgoUsers) Upsert(ctx context.Context, u *model.User) error {
	users, err := s.users()
	if err != nil {
		return err
	}
	cp := *u
	cp.Gender = model.ParseGender(string(u.Gender))
	_, err = users.ReplaceOne(ctx, bson.M{"_id": u.ID}, &cp, options.Replace().SetUpsert(true))
	return errs.WrapMsg(err, "upsert user")
}

type mgoConvs struct{ *Mongo }

func (s mgoConvs) insert(ctx context.Context, c *model.Conversation) error {
	convs, err := s.convs()
	if err != nil {
		return err
	}
	cp := c.Clone()
	cp.PairKey = model.PairKeyOf(cp.ParticipantIDs)
	_, err = convs.InsertOne(ctx, cp)
	return err
}

func (s mgoConvs) Create(ctx context.Context, c *model.Conversation) error {
	return errs.WrapMsg(s.insert(ctx, c), "insert conversation")
}

func (s mgoConvs) CreatePair(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	if model.PairKeyOf(c.ParticipantIDs) == "" {
		return nil, errs.ErrValidation.WrapMsg("a pair needs two distinct participants")
	}
	err := s.insert(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return s.FindPair(ctx, c.ParticipantIDs[0], c.ParticipantIDs[1])
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "insert conversation")
	}
	return s.Get(ctx, c.ID)
}

func (s mgoConvs) findOne(ctx context.Context, filter any) (*model.Conversation, error) {
	convs, err := s.convs()
	if err != nil {
		return nil, err
	}
	c := &model.Conversation{}
	err = convs.FindOne(ctx, filter).Decode(c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WrapMsg("Conversation not found")
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find conversation")
	}
	return c, nil
}

func (s mgoConvs) Get(ctx context.Context, id string) (*model.Conversation, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s mgoConvs) FindPair(ctx context.Context, a, b string) (*model.Conversation, error) {
	key := model.PairKeyOf([]string{a, b})
	if key == "" {
		return nil, errs.ErrNotFound.WrapMsg("Conversation not found")
	}
	return s.findOne(ctx, bson.M{"pair_key": key})
}

func (s mgoConvs) ListForUser(ctx context.Context, userID string) ([]*model.Conversation, error) {
	convs, err := s.convs()
	if err != nil {
		return nil, err
	}
	cur, err := convs.Find(ctx, bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "list conversations")
	}
	out := make([]*model.Conversation, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode conversations")
	}
	return out, nil
}

func (s mgoConvs) SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	convs, err := s.convs()
	if err != nil {
		return err
	}
	res, err := convs.UpdateOne(ctx, bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"last_message_id": messageID, "updated_at": at}})
	if err != nil {
		return errs.WrapMsg(err, "set last message")
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound.WrapMsg("Conversation not found")
	}
	return nil
}

type mgoMsgs struct{ *Mongo }

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}

func (s mgoMsgs) Create(ctx context.Context, m *model.Message) error {
	msgs, err := s.msgs()
	if err != nil {
		return err
	}
	_, err = msgs.InsertOne(ctx, m)
	return errs.WrapMsg(err, "insert message")
}

func (s mgoMsgs) Get(ctx context.Context, id string) (*model.Message, error) {
	msgs, err := s.msgs()
	if err != nil {
		return nil, err
	}
	m := &model.Message{}
	err = msgs.FindOne(ctx, bson.M{"_id": id}).Decode(m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WrapMsg("Message not found")
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "get message")
	}
	return m, nil
}

func (s mgoMsgs) ListPage(ctx context.Context, conversationID string, limit, offset int) ([]*model.Message, error) {
	msgs, err := s.msgs()
	if err != nil {
		return nil, err
	}
	cur, err := msgs.Find(ctx, bson.M{"conversation_id": conversationID},
		options.Find().SetSort(newestFirst).SetSkip(int64(offset)).SetLimit(int64(limit)))
	if err != nil {
		return nil, errs.WrapMsg(err, "list messages")
	}
	out := make([]*model.Message, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode messages")
	}
	return out, nil
}

func (s mgoMsgs) Latest(ctx context.Context, conversationIDs []string) (map[string]*model.Message, error) {
	out := make(map[string]*model.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	msgs, err := s.msgs()
	if err != nil {
		return nil, err
	}
	cur, err := msgs.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"conversation_id": bson.M{"$in": conversationIDs}}}},
		{{Key: "$sort", Value: newestFirst}},
		{{Key: "$group", Value: bson.M{"_id": "$conversation_id", "doc": bson.M{"$first": "$$ROOT"}}}},
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "latest messages")
	}
	var rows []struct {
		Doc *model.Message `bson:"doc"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.WrapMsg(err, "decode latest messages")
	}
	for _, r := range rows {
		if r.Doc != nil {
			out[r.Doc.ConversationID] = r.Doc
		}
	}
	return out, nil
}

func (s mgoMsgs) MarkRead(ctx context.Context, id string) error {
	msgs, err := s.msgs()
	if err != nil {
		return err
	}
	res, err := msgs.UpdateOne(ctx, bson.M{"_id": id, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "updated_at": time.Now()}})
	if err != nil {
		return errs.WrapMsg(err, "mark read")
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s mgoMsgs) Delete(ctx context.Context, id string) error {
	msgs, err := s.msgs()
	if err != nil {
		return err
	}
	convs, err := s.convs()
	if err != nil {
		return err
	}
	res, err := msgs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errs.WrapMsg(err, "delete message")
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound.WrapMsg("Message not found")
	}
	if _, err := convs.UpdateMany(ctx, bson.M{"last_message_id": id},
		bson.M{"$unset": bson.M{"last_message_id": ""}}); err != nil {
		return errs.WrapMsg(err, "clear last message pointer")
	}
	return nil
}
