package optim

var NewWorkerPool = newWorkerPool

func (p *workerPool) Run()      { p.run() }
func (p *workerPool) Close()    { p.close() }
func (p *workerPool) Size() int { return p.size() }
