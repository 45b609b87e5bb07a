package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"loyalty-engine/events"
	"loyalty-engine/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testBusiness int64 = 10

func standardLadder() []models.Tier {
	return []models.Tier{
		tier("Bronze", 0, cashback(5)),
		tier("Silver", 100, custom("Silver perks", "Priority queue"), limited("Free coffee", 2, false)),
		tier("Gold", 500, cashback(10), limited("Welcome gift", 1, true)),
	}
}

func TestProcessPurchaseTierUpgradeEarnsPreTierCashback(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 0, "0", strPtr("Bronze"))
	pub := &recordingPublisher{}
	svc := newTestLedger(db, pub)

	receipt, err := svc.ProcessPurchase(context.Background(), PurchaseInput{
		CustomerID: 1,
		BusinessID: testBusiness,
		BillAmount: dec("200"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(200), receipt.PointsAwarded)
	assert.Equal(t, int64(200), receipt.NewPoints)
	assert.True(t, receipt.CashbackEarned.Equal(dec("10")), "cashback=%s", receipt.CashbackEarned)
	assert.True(t, receipt.RedeemablePoints.Equal(dec("10")))
	assert.True(t, receipt.TotalDiscount.IsZero())
	assert.True(t, receipt.FinalAmount.Equal(dec("200")))
	require.NotNil(t, receipt.TierName)
	assert.Equal(t, "Silver", *receipt.TierName)
	assert.True(t, receipt.TierUpgraded)

	account := loadAccount(t, db, 1, testBusiness)
	assert.Equal(t, int64(200), account.Points)
	assert.True(t, account.RedeemablePoints.Equal(dec("10")))
	assert.Equal(t, "Silver", account.TierName())
	assert.Equal(t, int64(1), account.Version)

	upgrades := pub.ofType(events.TypeTierUpgraded)
	require.Len(t, upgrades, 1)
	assert.Equal(t, "Bronze", upgrades[0].PreviousTier)
	assert.Equal(t, "Silver", upgrades[0].TierName)

	earned := pub.ofType(events.TypePointsEarned)
	require.Len(t, earned, 1)
	assert.Equal(t, int64(200), earned[0].PointsAwarded)
	assert.Equal(t, int64(1), earned[0].CustomerID)
	assert.Equal(t, testBusiness, earned[0].BusinessID)
}

func TestProcessPurchaseGoalNudge(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness,
		tier("Silver", 400, custom("Silver perks", "Priority queue")),
		tier("Gold", 500, cashback(10)),
	)
	seedCustomer(t, db, 1, testBusiness, 450, "0", strPtr("Silver"))
	pub := &recordingPublisher{}
	svc := newTestLedger(db, pub)

	receipt, err := svc.ProcessPurchase(context.Background(), PurchaseInput{
		CustomerID: 1,
		BusinessID: testBusiness,
		BillAmount: dec("40"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(490), receipt.NewPoints)
	assert.False(t, receipt.TierUpgraded)
	assert.Equal(t, "Silver", *receipt.TierName)
	assert.Empty(t, pub.ofType(events.TypeTierUpgraded))

	nudges := pub.ofType(events.TypeGoalNudge)
	require.Len(t, nudges, 1)
	assert.Equal(t, "Gold", nudges[0].NextTier)
	assert.Equal(t, int64(10), nudges[0].PointsRequired)
	assert.InDelta(t, 90.0, nudges[0].PercentageComplete, 0.001)
}

func TestProcessPurchaseNoNudgeWhenFarFromNextTier(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 100, "0", strPtr("Silver"))
	pub := &recordingPublisher{}
	svc := newTestLedger(db, pub)

	// 440 of 100..500: 85% of the way but 60 points short.
	_, err := svc.ProcessPurchase(context.Background(), PurchaseInput{CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("340")})
	require.NoError(t, err)
	assert.Empty(t, pub.ofType(events.TypeGoalNudge))
}

func TestProcessPurchaseRedeemableFloorsAtZero(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, tier("Silver", 100, custom("Silver perks", "Priority queue")))
	seedCustomer(t, db, 1, testBusiness, 0, "10", nil)
	svc := newTestLedger(db, &recordingPublisher{})

	receipt, err := svc.ProcessPurchase(context.Background(), PurchaseInput{
		CustomerID:           1,
		BusinessID:           testBusiness,
		BillAmount:           dec("100"),
		RedeemablePointsUsed: dec("30"),
	})
	require.NoError(t, err)

	assert.True(t, receipt.RedeemablePoints.IsZero())
	assert.True(t, receipt.TotalDiscount.Equal(dec("30")))
	assert.True(t, receipt.FinalAmount.Equal(dec("70")))
	// Points follow the gross bill, not the discounted amount.
	assert.Equal(t, int64(100), receipt.PointsAwarded)

	account := loadAccount(t, db, 1, testBusiness)
	assert.True(t, account.RedeemablePoints.IsZero())
}

func TestProcessPurchaseFloorsFractionalBill(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 0, "0", strPtr("Bronze"))
	svc := newTestLedger(db, &recordingPublisher{})

	receipt, err := svc.ProcessPurchase(context.Background(), PurchaseInput{CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("19.99")})
	require.NoError(t, err)
	assert.Equal(t, int64(19), receipt.PointsAwarded)
	// 5% of 19.99 rounded to cents.
	assert.True(t, receipt.CashbackEarned.Equal(dec("1")), "cashback=%s", receipt.CashbackEarned)
}

func TestProcessPurchaseRecordsRedemptions(t *testing.T) {
	db := freshDB(t)
	program := seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 150, "5", strPtr("Silver"))
	svc := newTestLedger(db, &recordingPublisher{})

	coffee := rewardID(t, program, "Silver", models.RewardTypeLimitedUsage)
	perks := rewardID(t, program, "Silver", models.RewardTypeCustom)

	receipt, err := svc.ProcessPurchase(context.Background(), PurchaseInput{
		CustomerID:           1,
		BusinessID:           testBusiness,
		BillAmount:           dec("50"),
		RedeemablePointsUsed: dec("5"),
		RedeemedRewards: []RedeemedReward{
			{RewardID: coffee, RewardType: models.RewardTypeLimitedUsage, Value: dec("3.50")},
			{RewardID: perks, RewardType: models.RewardTypeCustom},
		},
	})
	require.NoError(t, err)
	assert.True(t, receipt.TotalDiscount.Equal(dec("8.5")))
	assert.True(t, receipt.FinalAmount.Equal(dec("41.5")))

	txns, err := svc.ListTransactions(context.Background(), 1, testBusiness, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, receipt.TransactionID, txns[0].ID)
	assert.Equal(t, int64(50), txns[0].PointsAwarded)
	require.Len(t, txns[0].Redemptions, 2)
	for _, r := range txns[0].Redemptions {
		assert.Equal(t, receipt.TransactionID, r.TransactionID)
	}

	// Second coffee this month is fine, the third is over the limit.
	_, err = svc.ProcessPurchase(context.Background(), PurchaseInput{
		CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("10"),
		RedeemedRewards: []RedeemedReward{{RewardID: coffee, RewardType: models.RewardTypeLimitedUsage, Value: dec("3.50")}},
	})
	require.NoError(t, err)
	_, err = svc.ProcessPurchase(context.Background(), PurchaseInput{
		CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("10"),
		RedeemedRewards: []RedeemedReward{{RewardID: coffee, RewardType: models.RewardTypeLimitedUsage, Value: dec("3.50")}},
	})
	assert.True(t, IsKind(err, KindValidation), "got %v", err)
}

func TestProcessPurchaseRejectedRedemptionRollsBack(t *testing.T) {
	db := freshDB(t)
	program := seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 150, "5", strPtr("Silver"))
	pub := &recordingPublisher{}
	svc := newTestLedger(db, pub)

	// Gold's gift is not available to a Silver customer.
	gift := rewardID(t, program, "Gold", models.RewardTypeLimitedUsage)
	_, err := svc.ProcessPurchase(context.Background(), PurchaseInput{
		CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("500"),
		RedeemedRewards: []RedeemedReward{{RewardID: gift, RewardType: models.RewardTypeLimitedUsage, Value: dec("10")}},
	})
	assert.True(t, IsKind(err, KindValidation), "got %v", err)

	account := loadAccount(t, db, 1, testBusiness)
	assert.Equal(t, int64(150), account.Points)
	assert.True(t, account.RedeemablePoints.Equal(dec("5")))
	assert.Equal(t, int64(0), account.Version)

	var count int64
	db.Model(&models.Transaction{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, pub.events, "nothing is published for a rolled back purchase")
}

func TestProcessPurchaseErrors(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, standardLadder()...)
	svc := newTestLedger(db, &recordingPublisher{})
	ctx := context.Background()

	_, err := svc.ProcessPurchase(ctx, PurchaseInput{CustomerID: 99, BusinessID: testBusiness, BillAmount: dec("10")})
	assert.True(t, IsKind(err, KindNotFound), "got %v", err)

	_, err = svc.ProcessPurchase(ctx, PurchaseInput{CustomerID: 0, BusinessID: testBusiness, BillAmount: dec("10")})
	assert.True(t, IsKind(err, KindValidation))

	_, err = svc.ProcessPurchase(ctx, PurchaseInput{CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("-1")})
	assert.True(t, IsKind(err, KindValidation))

	_, err = svc.ProcessPurchase(ctx, PurchaseInput{CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("10"), RedeemablePointsUsed: dec("-5")})
	assert.True(t, IsKind(err, KindValidation))

	_, err = svc.ProcessPurchase(ctx, PurchaseInput{
		CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("10"),
		RedeemedRewards: []RedeemedReward{{RewardID: "x", RewardType: "discount"}},
	})
	assert.True(t, IsKind(err, KindValidation))
}

func TestProcessPurchasePublishFailureDoesNotFailPurchase(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 0, "0", strPtr("Bronze"))
	svc := newTestLedger(db, &recordingPublisher{err: errBrokerDown})

	receipt, err := svc.ProcessPurchase(context.Background(), PurchaseInput{CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("20")})
	require.NoError(t, err)
	assert.Equal(t, int64(20), receipt.NewPoints)
}

func TestProcessPurchaseWithoutProgram(t *testing.T) {
	db := freshDB(t)
	seedCustomer(t, db, 1, testBusiness, 0, "0", nil)
	svc := newTestLedger(db, &recordingPublisher{})

	receipt, err := svc.ProcessPurchase(context.Background(), PurchaseInput{CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("20")})
	require.NoError(t, err)
	assert.Nil(t, receipt.TierName)
	assert.False(t, receipt.TierUpgraded)
	assert.True(t, receipt.CashbackEarned.IsZero())
}

// SQLite ignores FOR UPDATE and the test pool has a single connection, so this
// only checks that concurrent callers are serialized end to end. Row locking
// itself is covered by ledger_postgres_test.go.
func TestConcurrentPurchasesLoseNoUpdates(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 0, "0", strPtr("Bronze"))
	svc := newTestLedger(db, &recordingPublisher{})

	const n = 25
	bill := dec("12.75")

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessPurchase(context.Background(), PurchaseInput{CustomerID: 1, BusinessID: testBusiness, BillAmount: bill})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	account := loadAccount(t, db, 1, testBusiness)
	assert.Equal(t, int64(n*12), account.Points)
	assert.Equal(t, int64(n), account.Version)

	var count int64
	db.Model(&models.Transaction{}).Where("customer_id = ?", 1).Count(&count)
	assert.Equal(t, int64(n), count)
}

func TestRedeemableNeverNegativeAndPointsNeverDecrease(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 0, "0", strPtr("Bronze"))
	svc := newTestLedger(db, &recordingPublisher{})

	purchases := []struct{ bill, used string }{
		{"100", "0"}, {"40", "50"}, {"10", "0"}, {"300", "2"}, {"5", "100"}, {"700", "1"}, {"1", "0"},
	}
	prevPoints := int64(0)
	for _, p := range purchases {
		receipt, err := svc.ProcessPurchase(context.Background(), PurchaseInput{
			CustomerID: 1, BusinessID: testBusiness,
			BillAmount: dec(p.bill), RedeemablePointsUsed: dec(p.used),
		})
		require.NoError(t, err)
		assert.False(t, receipt.RedeemablePoints.LessThan(decimal.Zero))
		assert.GreaterOrEqual(t, receipt.NewPoints, prevPoints)
		prevPoints = receipt.NewPoints

		account := loadAccount(t, db, 1, testBusiness)
		ladder, err := loadLadder(db, testBusiness)
		require.NoError(t, err)
		assert.True(t, sameTierName(account.CurrentTierName, ResolveTierName(account.Points, ladder)))
	}
}

func TestEnsureCustomer(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, standardLadder()...)
	svc := newTestLedger(db, &recordingPublisher{})
	ctx := context.Background()

	account, created, err := svc.EnsureCustomer(ctx, 5, testBusiness)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Bronze", account.TierName())
	assert.Zero(t, account.Points)

	again, created, err := svc.EnsureCustomer(ctx, 5, testBusiness)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, account.ID, again.ID)

	got, err := svc.GetCustomer(ctx, 5, testBusiness)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	_, err = svc.GetCustomer(ctx, 6, testBusiness)
	assert.True(t, IsKind(err, KindNotFound))

	_, _, err = svc.EnsureCustomer(ctx, 0, testBusiness)
	assert.True(t, IsKind(err, KindValidation))
}

func TestProcessPurchaseRejectsOutOfRangeAmounts(t *testing.T) {
	db := freshDB(t)
	program := seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 150, "5", strPtr("Silver"))
	pub := &recordingPublisher{}
	svc := newTestLedger(db, pub)
	coffee := rewardID(t, program, "Silver", models.RewardTypeLimitedUsage)

	tests := []struct {
		name string
		in   PurchaseInput
	}{
		{"bill beyond int64", PurchaseInput{BillAmount: dec("10000000000000000000")}},
		{"bill at column limit", PurchaseInput{BillAmount: dec("1000000000000")}},
		{"bill with three decimals", PurchaseInput{BillAmount: dec("10.005")}},
		{"redeemable beyond limit", PurchaseInput{BillAmount: dec("10"), RedeemablePointsUsed: dec("1000000000000")}},
		{"reward value above bill", PurchaseInput{BillAmount: dec("10"), RedeemedRewards: []RedeemedReward{
			{RewardID: coffee, RewardType: models.RewardTypeLimitedUsage, Value: dec("10.01")},
		}}},
		{"reward value with three decimals", PurchaseInput{BillAmount: dec("10"), RedeemedRewards: []RedeemedReward{
			{RewardID: coffee, RewardType: models.RewardTypeLimitedUsage, Value: dec("1.005")},
		}}},
		{"total discount beyond limit", PurchaseInput{BillAmount: dec("999999999999"), RedeemablePointsUsed: dec("999999999999"), RedeemedRewards: []RedeemedReward{
			{RewardID: coffee, RewardType: models.RewardTypeLimitedUsage, Value: dec("1")},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			in.CustomerID = 1
			in.BusinessID = testBusiness
			_, err := svc.ProcessPurchase(context.Background(), in)
			assert.True(t, IsKind(err, KindValidation), "got %v", err)
		})
	}

	account := loadAccount(t, db, 1, testBusiness)
	assert.Equal(t, int64(150), account.Points)
	assert.Equal(t, int64(0), account.Version)
	assert.Empty(t, pub.events)
}

func TestProcessPurchaseRewardValuesMayCoverWholeBill(t *testing.T) {
	db := freshDB(t)
	program := seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 150, "0", strPtr("Silver"))
	svc := newTestLedger(db, &recordingPublisher{})
	coffee := rewardID(t, program, "Silver", models.RewardTypeLimitedUsage)

	receipt, err := svc.ProcessPurchase(context.Background(), PurchaseInput{
		CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("4.50"),
		RedeemedRewards: []RedeemedReward{{RewardID: coffee, RewardType: models.RewardTypeLimitedUsage, Value: dec("4.50")}},
	})
	require.NoError(t, err)
	assert.True(t, receipt.FinalAmount.IsZero())
}

func TestProcessPurchaseFromRemovedTierIsNotAnUpgrade(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, standardLadder()...)
	// Platinum was removed from the ladder and no recompute has run yet.
	seedCustomer(t, db, 1, testBusiness, 150, "0", strPtr("Platinum"))
	pub := &recordingPublisher{}
	svc := newTestLedger(db, pub)

	receipt, err := svc.ProcessPurchase(context.Background(), PurchaseInput{CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("10")})
	require.NoError(t, err)

	require.NotNil(t, receipt.TierName)
	assert.Equal(t, "Silver", *receipt.TierName)
	assert.False(t, receipt.TierUpgraded)
	assert.Empty(t, pub.ofType(events.TypeTierUpgraded))

	account := loadAccount(t, db, 1, testBusiness)
	assert.Equal(t, "Silver", account.TierName())
}

// failCreates makes the next `times` inserts into table fail with err and
// returns the number of inserts it has failed so far.
func failCreates(t *testing.T, db *gorm.DB, table string, times int, err error) *int {
	t.Helper()
	failed := 0
	name := "loyalty_test:fail_create_" + table
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table && failed < times {
			failed++
			tx.AddError(err)
		}
	}))
	t.Cleanup(func() { _ = db.Callback().Create().Remove(name) })
	return &failed
}

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
}

func TestProcessPurchaseRetriesConcurrencyFailures(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 0, "0", strPtr("Bronze"))
	pub := &recordingPublisher{}
	svc := newTestLedger(db, pub)
	svc.Config.MaxRetries = 2

	failed := failCreates(t, db, "transactions", 2, serializationFailure())

	receipt, err := svc.ProcessPurchase(context.Background(), PurchaseInput{CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("20")})
	require.NoError(t, err)
	assert.Equal(t, 2, *failed)
	assert.Equal(t, int64(20), receipt.NewPoints)

	// Only the committed attempt is visible.
	account := loadAccount(t, db, 1, testBusiness)
	assert.Equal(t, int64(20), account.Points)
	assert.Equal(t, int64(1), account.Version)

	var count int64
	db.Model(&models.Transaction{}).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.Len(t, pub.ofType(events.TypePointsEarned), 1)
}

func TestProcessPurchaseExhaustedRetriesAreInternal(t *testing.T) {
	db := freshDB(t)
	seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 0, "0", strPtr("Bronze"))
	pub := &recordingPublisher{}
	svc := newTestLedger(db, pub)
	svc.Config.MaxRetries = 2

	failed := failCreates(t, db, "transactions", 3, serializationFailure())

	_, err := svc.ProcessPurchase(context.Background(), PurchaseInput{CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("20")})
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, 3, *failed)

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr), "cause is kept for logs")

	account := loadAccount(t, db, 1, testBusiness)
	assert.Equal(t, int64(0), account.Points)
	assert.Equal(t, int64(0), account.Version)

	var count int64
	db.Model(&models.Transaction{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, pub.events)
}

func TestProcessPurchaseStorageFailureRollsBackEverything(t *testing.T) {
	db := freshDB(t)
	program := seedProgram(t, db, testBusiness, standardLadder()...)
	seedCustomer(t, db, 1, testBusiness, 150, "5", strPtr("Silver"))
	pub := &recordingPublisher{}
	svc := newTestLedger(db, pub)
	coffee := rewardID(t, program, "Silver", models.RewardTypeLimitedUsage)

	// The customer row and the transaction are written before the redemptions.
	failed := failCreates(t, db, "reward_redemptions", 1, errors.New("disk I/O error"))

	_, err := svc.ProcessPurchase(context.Background(), PurchaseInput{
		CustomerID: 1, BusinessID: testBusiness, BillAmount: dec("400"),
		RedeemablePointsUsed: dec("5"),
		RedeemedRewards:      []RedeemedReward{{RewardID: coffee, RewardType: models.RewardTypeLimitedUsage, Value: dec("3")}},
	})
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, 1, *failed, "non-concurrency failures are not retried")

	account := loadAccount(t, db, 1, testBusiness)
	assert.Equal(t, int64(150), account.Points)
	assert.True(t, account.RedeemablePoints.Equal(dec("5")))
	assert.Equal(t, "Silver", account.TierName())
	assert.Equal(t, int64(0), account.Version)

	var txns, redemptions int64
	db.Model(&models.Transaction{}).Count(&txns)
	db.Model(&models.RewardRedemption{}).Count(&redemptions)
	assert.Zero(t, txns)
	assert.Zero(t, redemptions)
	assert.Empty(t, pub.events)
}
