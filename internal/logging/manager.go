package logging

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// Компоненты сервиса, у каждого свой файл в logs/
const (
	ComponentTerrain = "terrain"
	ComponentAPI     = "api"
	ComponentStorage = "storage"
	ComponentEvents  = "events"
)

// LoggerManager раздаёт логгеры компонентов и держит их до CloseAll
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger

	// Уровни для логгеров, созданных после SetAllLevels
	levelsSet    bool
	consoleLevel LogLevel
	fileLevel    LogLevel
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = NewLoggerManager()
	})
	return globalManager
}

// NewLoggerManager создаёт пустой менеджер
func NewLoggerManager() *LoggerManager {
	return &LoggerManager{loggers: make(map[string]*Logger)}
}

// GetLogger возвращает логгер компонента, открывая файл при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	logger, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if ok {
		return logger, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if logger, ok := lm.loggers[component]; ok {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("логгер %s: %w", component, err)
	}
	if lm.levelsSet {
		logger.SetLevels(lm.consoleLevel, lm.fileLevel)
	}
	lm.loggers[component] = logger
	return logger, nil
}

// Register добавляет готовый логгер (например, консольный в тестах)
func (lm *LoggerManager) Register(logger *Logger) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.loggers[logger.Component()] = logger
}

// MustGetLogger при ошибке файла возвращает консольный логгер в stderr
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		return NewConsoleLogger(component, INFO, os.Stderr)
	}
	return logger
}

// SetAllLevels меняет уровни всех текущих и будущих логгеров
func (lm *LoggerManager) SetAllLevels(console, file LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.levelsSet = true
	lm.consoleLevel, lm.fileLevel = console, file
	for _, logger := range lm.loggers {
		logger.SetLevels(console, file)
	}
}

// SetLogLevel устанавливает уровни одного компонента
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.RLock()
	logger, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("логгер компонента %s не найден", component)
	}

	logger.SetLevels(consoleLevel, fileLevel)
	return nil
}

// ListComponents возвращает отсортированный список компонентов
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// CloseAll закрывает файлы всех логгеров и очищает менеджер
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var lastErr error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			lastErr = fmt.Errorf("закрытие логгера %s: %w", component, err)
		}
	}
	lm.loggers = make(map[string]*Logger)
	return lastErr
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetTerrainLogger() *Logger { return GetComponentLogger(ComponentTerrain) }

func GetAPILogger() *Logger { return GetComponentLogger(ComponentAPI) }

func GetStorageLogger() *Logger { return GetComponentLogger(ComponentStorage) }

func GetEventsLogger() *Logger { return GetComponentLogger(ComponentEvents) }
