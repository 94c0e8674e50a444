package analytics

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"

// DispatchDataCollector receives the outcome of every step dispatch for
// offline reporting. It is fed alongside the interaction audit trail, never
// instead of it.
type DispatchDataCollector interface {
	RecordDispatchSuccess(enrollmentId string, prospectId string, stepNumber int, channel string)
	RecordDispatchFailure(enrollmentId string, prospectId string, stepNumber int, channel string, reason string)
}

var dispatchCollector DispatchDataCollector = noopCollector{}

func InitDataCollector(config DataCollectorConfig) error {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return err
		}
		dispatchCollector = c
	}
	return nil
}

func RecordDispatchSuccess(enrollmentId string, prospectId string, stepNumber int, channel string) {
	dispatchCollector.RecordDispatchSuccess(enrollmentId, prospectId, stepNumber, channel)
}

func RecordDispatchFailure(enrollmentId string, prospectId string, stepNumber int, channel string, reason string) {
	dispatchCollector.RecordDispatchFailure(enrollmentId, prospectId, stepNumber, channel, reason)
}

type noopCollector struct{}

func (noopCollector) RecordDispatchSuccess(enrollmentId string, prospectId string, stepNumber int, channel string) {
}

func (noopCollector) RecordDispatchFailure(enrollmentId string, prospectId string, stepNumber int, channel string, reason string) {
}
