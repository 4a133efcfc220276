package config

type WorkerKeyStruct struct {
	PersistSignalsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistSignalsQueue: "persist_signals_queue",
}
