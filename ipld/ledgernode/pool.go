package ledgernode

import "sync"

var transactionPool = &sync.Pool{New: func() any { return &Transaction{} }}

func GetTransaction() *Transaction { return transactionPool.Get().(*Transaction) }

func PutTransaction(t *Transaction) {
	if t == nil {
		return
	}
	t.Reset()
	transactionPool.Put(t)
}

var entryPool = &sync.Pool{New: func() any { return &Entry{} }}

func GetEntry() *Entry { return entryPool.Get().(*Entry) }

func PutEntry(e *Entry) {
	if e == nil {
		return
	}
	e.Reset()
	entryPool.Put(e)
}

var blockPool = &sync.Pool{New: func() any { return &Block{} }}

func GetBlock() *Block { return blockPool.Get().(*Block) }

func PutBlock(b *Block) {
	if b == nil {
		return
	}
	b.Reset()
	blockPool.Put(b)
}

var subsetPool = &sync.Pool{New: func() any { return &Subset{} }}

func GetSubset() *Subset { return subsetPool.Get().(*Subset) }

func PutSubset(s *Subset) {
	if s == nil {
		return
	}
	s.Reset()
	subsetPool.Put(s)
}

var epochPool = &sync.Pool{New: func() any { return &Epoch{} }}

func GetEpoch() *Epoch { return epochPool.Get().(*Epoch) }

func PutEpoch(e *Epoch) {
	if e == nil {
		return
	}
	e.Reset()
	epochPool.Put(e)
}

var rewardsPool = &sync.Pool{New: func() any { return &Rewards{} }}

func GetRewards() *Rewards { return rewardsPool.Get().(*Rewards) }

func PutRewards(r *Rewards) {
	if r == nil {
		return
	}
	r.Reset()
	rewardsPool.Put(r)
}

var dataFramePool = &sync.Pool{New: func() any { return &DataFrame{} }}

func GetDataFrame() *DataFrame { return dataFramePool.Get().(*DataFrame) }

func PutDataFrame(d *DataFrame) {
	if d == nil {
		return
	}
	d.Reset()
	dataFramePool.Put(d)
}
