// Package mongostore implements storage.Store on MongoDB.
//
// Each aggregate lives in its own collection keyed by a UUID string _id.
// Unique indexes on accounts.email and budgets(account_id, category) back the
// conflict errors.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	client   *mongo.Client
	accounts *mongo.Collection
	entries  *mongo.Collection
	budgets  *mongo.Collection
	goals    *mongo.Collection
}

// Open connects to uri, pings and ensures indexes in dbName.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:   client,
		accounts: db.Collection("accounts"),
		entries:  db.Collection("entries"),
		budgets:  db.Collection("budgets"),
		goals:    db.Collection("goals"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	slog.InfoContext(ctx, "Mongo store ready", "database", dbName)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.accounts, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.entries, mongo.IndexModel{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "occurred_on", Value: -1}, {Key: "created_at", Value: -1}}}},
		{s.entries, mongo.IndexModel{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "category", Value: 1}, {Key: "kind", Value: 1}}}},
		{s.budgets, mongo.IndexModel{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "category", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.goals, mongo.IndexModel{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "due_on", Value: 1}}}},
	}
	for _, ix := range indexes {
		if _, err := ix.coll.Indexes().CreateOne(ctx, ix.model); err != nil {
			return fmt.Errorf("create index on %s: %w", ix.coll.Name(), err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func insertErr(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return core.ErrConflict
	}
	return core.StoreErr(op, err)
}

func findErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.ErrNotFound
	}
	return core.StoreErr(op, err)
}

// Accounts

func (s *Store) CreateAccount(ctx context.Context, a core.Account) error {
	doc := toAccountDoc(a)
	doc.Email = strings.ToLower(doc.Email)
	_, err := s.accounts.InsertOne(ctx, doc)
	return insertErr("create account", err)
}

func (s *Store) GetAccount(ctx context.Context, id string) (core.Account, error) {
	var doc accountDoc
	if err := s.accounts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return core.Account{}, findErr("get account", err)
	}
	return doc.toCore(), nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (core.Account, error) {
	var doc accountDoc
	if err := s.accounts.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&doc); err != nil {
		return core.Account{}, findErr("get account by email", err)
	}
	return doc.toCore(), nil
}

func (s *Store) ReconcileBalance(ctx context.Context, accountID string) (core.Money, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"account_id": accountID}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"balance": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$kind", string(core.KindIncome)}},
				"$amount_cents",
				bson.M{"$multiply": bson.A{"$amount_cents", -1}},
			}}},
		}}},
	}
	seq, err := s.ledgerSeq(ctx, accountID)
	if err != nil {
		return core.Money{}, core.StoreErr("reconcile balance", err)
	}
	balance, err := s.aggregateInt(ctx, s.entries, pipeline, "balance")
	if err != nil {
		return core.Money{}, core.StoreErr("reconcile balance", err)
	}
	return s.storeBalance(ctx, accountID, balance, seq)
}

func (s *Store) ListAccountIDs(ctx context.Context) ([]string, error) {
	cur, err := s.accounts.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, core.StoreErr("list accounts", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, core.StoreErr("list accounts", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// aggregateInt runs a pipeline ending in a single-group stage and returns
// field of its only document, or zero when nothing matched.
func (s *Store) aggregateInt(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, field string) (int64, error) {
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		return 0, cur.Err()
	}
	var out bson.M
	if err := cur.Decode(&out); err != nil {
		return 0, err
	}
	switch v := out[field].(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("unexpected %s type %T", field, v)
	}
}

// Ledger

// entryFilter renders an EntryFilter as a Mongo query document.
func entryFilter(accountID string, f core.EntryFilter) bson.M {
	q := bson.M{"account_id": accountID}
	if f.Kind != "" {
		q["kind"] = string(f.Kind)
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	dates := bson.M{}
	if !f.From.IsZero() {
		dates["$gte"] = f.From.String()
	}
	if !f.To.IsZero() {
		dates["$lte"] = f.To.String()
	}
	if len(dates) > 0 {
		q["occurred_on"] = dates
	}
	return q
}

func (s *Store) CreateEntry(ctx context.Context, e core.LedgerEntry) error {
	if _, err := s.entries.InsertOne(ctx, toEntryDoc(e)); err != nil {
		return insertErr("create entry", err)
	}
	s.bumpLedgerSeq(ctx, e.AccountID)
	return nil
}

func (s *Store) GetEntry(ctx context.Context, accountID, id string) (core.LedgerEntry, error) {
	var doc entryDoc
	if err := s.entries.FindOne(ctx, bson.M{"_id": id, "account_id": accountID}).Decode(&doc); err != nil {
		return core.LedgerEntry{}, findErr("get entry", err)
	}
	return doc.toCore()
}

func (s *Store) ListEntries(ctx context.Context, accountID string, f core.EntryFilter) ([]core.LedgerEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_on", Value: -1}, {Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := s.entries.Find(ctx, entryFilter(accountID, f), opts)
	if err != nil {
		return nil, core.StoreErr("list entries", err)
	}
	var docs []entryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, core.StoreErr("list entries", err)
	}
	out := make([]core.LedgerEntry, 0, len(docs))
	for _, d := range docs {
		e, err := d.toCore()
		if err != nil {
			return nil, core.StoreErr("list entries", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) UpdateEntry(ctx context.Context, e core.LedgerEntry) error {
	res, err := s.entries.UpdateOne(ctx,
		bson.M{"_id": e.ID, "account_id": e.AccountID},
		bson.M{"$set": bson.M{
			"kind":         string(e.Kind),
			"category":     e.Category,
			"amount_cents": e.Amount.Cents,
			"description":  e.Description,
			"occurred_on":  e.Date.String(),
			"updated_at":   e.UpdatedAt.UnixMilli(),
		}})
	if err != nil {
		return core.StoreErr("update entry", err)
	}
	if res.MatchedCount == 0 {
		return core.ErrNotFound
	}
	s.bumpLedgerSeq(ctx, e.AccountID)
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, accountID, id string) (core.LedgerEntry, error) {
	var doc entryDoc
	err := s.entries.FindOneAndDelete(ctx, bson.M{"_id": id, "account_id": accountID}).Decode(&doc)
	if err != nil {
		return core.LedgerEntry{}, findErr("delete entry", err)
	}
	s.bumpLedgerSeq(ctx, accountID)
	return doc.toCore()
}

func (s *Store) ListCategories(ctx context.Context, accountID string) ([]string, error) {
	values, err := s.entries.Distinct(ctx, "category", bson.M{"account_id": accountID})
	if err != nil {
		return nil, core.StoreErr("list categories", err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if c, ok := v.(string); ok {
			out = append(out, c)
		}
	}
	sortStrings(out)
	return out, nil
}

func (s *Store) sumExpenses(ctx context.Context, accountID, category string, from, to core.Date) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: entryFilter(accountID, core.EntryFilter{Kind: core.KindExpense, Category: category, From: from, To: to})}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount_cents"}}}},
	}
	return s.aggregateInt(ctx, s.entries, pipeline, "total")
}

func (s *Store) SumExpenses(ctx context.Context, accountID, category string, from, to core.Date) (core.Money, error) {
	total, err := s.sumExpenses(ctx, accountID, category, from, to)
	if err != nil {
		return core.Money{}, core.StoreErr("sum expenses", err)
	}
	return core.Cents(total), nil
}

// Budgets

func budgetKey(accountID, category string) bson.M {
	return bson.M{"account_id": accountID, "category": category}
}

func (s *Store) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := s.budgets.InsertOne(ctx, toBudgetDoc(b))
	return insertErr("create budget", err)
}

func (s *Store) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	var doc budgetDoc
	err := s.budgets.FindOneAndUpdate(ctx,
		budgetKey(b.AccountID, b.Category),
		bson.M{"$set": bson.M{
			"limit_cents": b.Limit.Cents,
			"enabled":     b.Enabled,
			"period":      string(b.Period),
			"updated_at":  b.UpdatedAt.UnixMilli(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return core.Budget{}, findErr("update budget", err)
	}
	return doc.toCore(), nil
}

func (s *Store) GetBudget(ctx context.Context, accountID, category string) (core.Budget, error) {
	var doc budgetDoc
	if err := s.budgets.FindOne(ctx, budgetKey(accountID, category)).Decode(&doc); err != nil {
		return core.Budget{}, findErr("get budget", err)
	}
	return doc.toCore(), nil
}

func (s *Store) ListBudgets(ctx context.Context, accountID string) ([]core.Budget, error) {
	cur, err := s.budgets.Find(ctx, bson.M{"account_id": accountID},
		options.Find().SetSort(bson.D{{Key: "category", Value: 1}}))
	if err != nil {
		return nil, core.StoreErr("list budgets", err)
	}
	var docs []budgetDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, core.StoreErr("list budgets", err)
	}
	out := make([]core.Budget, len(docs))
	for i, d := range docs {
		out[i] = d.toCore()
	}
	return out, nil
}

func (s *Store) DeleteBudget(ctx context.Context, accountID, category string) error {
	res, err := s.budgets.DeleteOne(ctx, budgetKey(accountID, category))
	if err != nil {
		return core.StoreErr("delete budget", err)
	}
	if res.DeletedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) RecomputeBudgetSpent(ctx context.Context, accountID, category string, from, to core.Date) (core.Budget, error) {
	seq, err := s.ledgerSeq(ctx, accountID)
	if err != nil {
		return core.Budget{}, core.StoreErr("recompute budget", err)
	}
	total, err := s.sumExpenses(ctx, accountID, category, from, to)
	if err != nil {
		return core.Budget{}, core.StoreErr("recompute budget", err)
	}
	return s.storeBudgetSpent(ctx, accountID, category, total, seq)
}

// Goals

func (s *Store) CreateGoal(ctx context.Context, g core.SavingsGoal) error {
	_, err := s.goals.InsertOne(ctx, toGoalDoc(g))
	return insertErr("create goal", err)
}

func (s *Store) GetGoal(ctx context.Context, accountID, id string) (core.SavingsGoal, error) {
	var doc goalDoc
	if err := s.goals.FindOne(ctx, bson.M{"_id": id, "account_id": accountID}).Decode(&doc); err != nil {
		return core.SavingsGoal{}, findErr("get goal", err)
	}
	return doc.toCore()
}

func (s *Store) ListGoals(ctx context.Context, accountID string) ([]core.SavingsGoal, error) {
	cur, err := s.goals.Find(ctx, bson.M{"account_id": accountID},
		options.Find().SetSort(bson.D{{Key: "due_on", Value: 1}, {Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, core.StoreErr("list goals", err)
	}
	var docs []goalDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, core.StoreErr("list goals", err)
	}
	out := make([]core.SavingsGoal, 0, len(docs))
	for _, d := range docs {
		g, err := d.toCore()
		if err != nil {
			return nil, core.StoreErr("list goals", err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) DeleteGoal(ctx context.Context, accountID, id string) error {
	res, err := s.goals.DeleteOne(ctx, bson.M{"_id": id, "account_id": accountID})
	if err != nil {
		return core.StoreErr("delete goal", err)
	}
	if res.DeletedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustGoal(ctx context.Context, accountID, id string, delta core.Money, now time.Time) (core.SavingsGoal, error) {
	var doc goalDoc
	err := s.goals.FindOneAndUpdate(ctx,
		bson.M{
			"_id":           id,
			"account_id":    accountID,
			"status":        string(core.GoalInProgress),
			"current_cents": bson.M{"$gte": -delta.Cents},
		},
		bson.M{
			"$inc": bson.M{"current_cents": delta.Cents},
			"$set": bson.M{"updated_at": now.UnixMilli()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.toCore()
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return core.SavingsGoal{}, core.StoreErr("adjust goal", err)
	}

	cur, err := s.GetGoal(ctx, accountID, id)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	if cur.Status != core.GoalInProgress {
		return core.SavingsGoal{}, core.ErrGoalClosed
	}
	return core.SavingsGoal{}, core.Invalid("amount", "withdrawal exceeds saved amount")
}

func (s *Store) SetGoalStatus(ctx context.Context, accountID, id string, status core.GoalStatus, now time.Time) error {
	if status != core.GoalInProgress {
		res, err := s.goals.UpdateOne(ctx,
			bson.M{"_id": id, "account_id": accountID, "status": string(core.GoalInProgress)},
			bson.M{"$set": bson.M{"status": string(status), "updated_at": now.UnixMilli()}})
		if err != nil {
			return core.StoreErr("set goal status", err)
		}
		if res.MatchedCount > 0 {
			return nil
		}
	}
	_, err := s.GetGoal(ctx, accountID, id)
	return err
}
