package service

import "context"

type testTxRepos struct {
	documents DocumentRepositoryInterface
	indexJobs IndexJobRepositoryInterface
}

func (t *testTxRepos) Documents() DocumentRepositoryInterface {
	return t.documents
}

func (t *testTxRepos) IndexJobs() IndexJobRepositoryInterface {
	return t.indexJobs
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
	err    error
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	if t.err != nil {
		return t.err
	}
	return fn(t.repos)
}
