package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuperchain/xdock/lib/logs/config"
	"github.com/xuperchain/xdock/lib/utils"

	log "github.com/xuperchain/log15"
)

// process level log handle, opened once by InitLog
var (
	logHandle LogDriver
	logOnce   sync.Once
	logMu     sync.RWMutex
)

// OpenLog create and open log stream using LogConf
func OpenLog(lc *config.LogConf, logDir string) (LogDriver, error) {
	if lc == nil {
		return nil, fmt.Errorf("log config is nil")
	}
	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create log dir failed.err:%v", err)
	}
	infoFile := filepath.Join(logDir, lc.Filename+".log")
	wfFile := filepath.Join(logDir, lc.Filename+".log.wf")

	lfmt := log.LogfmtFormat()
	switch lc.Fmt {
	case "json":
		lfmt = log.JsonFormat()
	}

	xlog := log.New("module", lc.Module)
	lvLevel, err := log.LvlFromString(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log level error.err:%v", err)
	}
	// set lowest level as level limit, this may improve performance
	xlog.SetLevelLimit(lvLevel)

	// RotateFileHandler only valid if `RotateInterval` and `RotateBackups` greater than 0
	var (
		nmHandler log.Handler
		wfHandler log.Handler
	)
	if lc.RotateInterval > 0 && lc.RotateBackups > 0 {
		nmHandler = log.Must.RotateFileHandler(
			infoFile, lfmt, lc.RotateInterval, lc.RotateBackups)
		wfHandler = log.Must.RotateFileHandler(
			wfFile, lfmt, lc.RotateInterval, lc.RotateBackups)
	} else {
		nmHandler = log.Must.FileHandler(infoFile, lfmt)
		wfHandler = log.Must.FileHandler(wfFile, lfmt)
	}

	if lc.Async {
		bufSize := lc.BufSize
		if bufSize <= 0 {
			bufSize = config.GetDefLogConf().BufSize
		}
		nmHandler = log.BufferedHandler(bufSize, nmHandler)
		wfHandler = log.BufferedHandler(bufSize, wfHandler)
	}

	// prints log level between `lvLevel` to Info to common log
	nmfileh := log.BoundLvlFilterHandler(lvLevel, log.LvlError, nmHandler)

	// prints log level greater or equal to Warn to wf log
	wffileh := log.LvlFilterHandler(log.LvlWarn, wfHandler)

	var lhd log.Handler
	if lc.Console {
		hstd := log.StreamHandler(os.Stderr, lfmt)
		lhd = log.SyncHandler(log.MultiHandler(hstd, nmfileh, wffileh))
	} else {
		lhd = log.SyncHandler(log.MultiHandler(nmfileh, wffileh))
	}
	xlog.SetHandler(lhd)

	return xlog, nil
}

// InitLog opens the process log handle. Only the first call takes effect.
func InitLog(cfgFile, logDir string) error {
	var err error
	logOnce.Do(func() {
		var lc *config.LogConf
		lc, err = config.LoadLogConf(cfgFile)
		if err != nil {
			return
		}
		var driver LogDriver
		driver, err = OpenLog(lc, logDir)
		if err != nil {
			return
		}
		setLogHandle(driver)
	})
	return err
}

// NewLogger create a logger for sub module, falls back to stderr if InitLog never ran
func NewLogger(logId string, subMod string) (*LogFitter, error) {
	driver := getLogHandle()
	if driver == nil {
		driver = consoleDriver()
	}

	lf, err := NewLogFitter(driver, logId)
	if err != nil {
		return nil, err
	}
	lf.SetCommField(CommFieldSubMod, subMod)
	return lf, nil
}

// GenLogId is a shortcut of utils.GenLogId
func GenLogId() string {
	return utils.GenLogId()
}

// GetFuncCall is a shortcut of utils.GetFuncCall
func GetFuncCall(callDepth int) (string, string) {
	return utils.GetFuncCall(callDepth)
}

func setLogHandle(driver LogDriver) {
	logMu.Lock()
	defer logMu.Unlock()
	logHandle = driver
}

func getLogHandle() LogDriver {
	logMu.RLock()
	defer logMu.RUnlock()
	return logHandle
}

var (
	consoleOnce sync.Once
	console     LogDriver
)

func consoleDriver() LogDriver {
	consoleOnce.Do(func() {
		xlog := log.New("module", config.GetDefLogConf().Module)
		xlog.SetHandler(log.LvlFilterHandler(log.LvlInfo,
			log.StreamHandler(os.Stderr, log.LogfmtFormat())))
		console = xlog
	})
	return console
}
