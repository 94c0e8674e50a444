package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogFileDataCollector struct {
	fileName string
	logger   *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = "" // to hide stacktrace info
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	defaultLogLevel := zapcore.InfoLevel
	core := zapcore.NewTee(zapcore.NewCore(fileEncoder, writer, defaultLogLevel))
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return &LogFileDataCollector{
		fileName: fileName,
		logger:   logger,
	}, nil
}

func (lc *LogFileDataCollector) RecordDispatchSuccess(enrollmentId string, prospectId string, stepNumber int, channel string) {
	lc.logger.Info("success", zap.String("enrollment", enrollmentId), zap.String("prospect", prospectId), zap.Int("step", stepNumber), zap.String("channel", channel))
}

func (lc *LogFileDataCollector) RecordDispatchFailure(enrollmentId string, prospectId string, stepNumber int, channel string, reason string) {
	lc.logger.Info("failure", zap.String("enrollment", enrollmentId), zap.String("prospect", prospectId), zap.Int("step", stepNumber), zap.String("channel", channel), zap.String("reason", reason))
}
