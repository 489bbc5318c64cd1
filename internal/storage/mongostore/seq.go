package mongostore

import (
	"context"
	"errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fintrack/internal/core"
)

// Derived totals are computed with an aggregate and written with a separate
// update, so two recomputes can land out of order. Every entry write bumps
// the account's ledger_seq after it completes; a total is stored together
// with the sequence read before summing and only over an older one.

const (
	fieldLedgerSeq  = "ledger_seq"
	fieldBalanceSeq = "balance_seq"
	fieldSpentSeq   = "spent_seq"
)

func (s *Store) bumpLedgerSeq(ctx context.Context, accountID string) {
	_, err := s.accounts.UpdateOne(ctx, bson.M{"_id": accountID}, bson.M{"$inc": bson.M{fieldLedgerSeq: 1}})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to bump ledger sequence", "account_id", accountID, "error", err)
	}
}

// ledgerSeq returns zero for accounts that have never been written to.
func (s *Store) ledgerSeq(ctx context.Context, accountID string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"ledger_seq"`
	}
	err := s.accounts.FindOne(ctx, bson.M{"_id": accountID},
		options.FindOne().SetProjection(bson.M{fieldLedgerSeq: 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

// seqGuard matches documents of key whose field is unset or not newer than seq.
func seqGuard(key bson.M, field string, seq int64) bson.M {
	filter := bson.M{"$or": bson.A{
		bson.M{field: bson.M{"$exists": false}},
		bson.M{field: bson.M{"$lte": seq}},
	}}
	for k, v := range key {
		filter[k] = v
	}
	return filter
}

// storeBudgetSpent writes total computed at seq. When a newer total is
// already stored it is returned unchanged.
func (s *Store) storeBudgetSpent(ctx context.Context, accountID, category string, total, seq int64) (core.Budget, error) {
	var doc budgetDoc
	err := s.budgets.FindOneAndUpdate(ctx,
		seqGuard(budgetKey(accountID, category), fieldSpentSeq, seq),
		bson.M{"$set": bson.M{"spent_cents": total, fieldSpentSeq: seq}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		err = s.budgets.FindOne(ctx, budgetKey(accountID, category)).Decode(&doc)
	}
	if err != nil {
		return core.Budget{}, findErr("recompute budget", err)
	}
	return doc.toCore(), nil
}

// storeBalance writes balance computed at seq, returning the stored balance.
func (s *Store) storeBalance(ctx context.Context, accountID string, balance, seq int64) (core.Money, error) {
	var doc accountDoc
	err := s.accounts.FindOneAndUpdate(ctx,
		seqGuard(bson.M{"_id": accountID}, fieldBalanceSeq, seq),
		bson.M{"$set": bson.M{"balance_cents": balance, fieldBalanceSeq: seq}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		err = s.accounts.FindOne(ctx, bson.M{"_id": accountID}).Decode(&doc)
	}
	if err != nil {
		return core.Money{}, findErr("reconcile balance", err)
	}
	return core.Cents(doc.BalanceCents), nil
}
