// Package mocks provides gomock doubles for the transfer ports in internal/core.
//
// To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	ledger := mocks.NewMockTransferLedger(ctrl)
//	ledger.EXPECT().Get(gomock.Any(), "job-1").Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=membership_store_mock.go github.com/target/bulkmove/internal/core MembershipBatch,MembershipStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=transfer_ledger_mock.go github.com/target/bulkmove/internal/core TransferLedger
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=dispatch_mock.go github.com/target/bulkmove/internal/core BatchWriter,Dispatcher,JobRunner
