package files

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	pt "github.com/activecm/flowguard/parser/parsetypes"
	"github.com/activecm/flowguard/util"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
)

// GatherLogFiles reads the files and directories looking for log and gz files
func GatherLogFiles(paths []string, logger *log.Logger) []string {
	var toReturn []string

	for _, path := range paths {
		if util.IsDir(path) {
			toReturn = append(toReturn, gatherDir(path, logger)...)
		} else if strings.HasSuffix(path, ".gz") ||
			strings.HasSuffix(path, ".log") {
			toReturn = append(toReturn, path)
		} else {
			logger.WithFields(log.Fields{
				"path": path,
			}).Warn("Ignoring non .log or .gz file")
		}
	}

	return toReturn
}

// gatherDir reads the directory looking for conn log and .gz files.
// Subdirectories are not followed so the spool symlink of a live Zeek install
// is skipped.
func gatherDir(cpath string, logger *log.Logger) []string {
	var toReturn []string
	files, err := ioutil.ReadDir(cpath)
	if err != nil {
		logger.WithFields(log.Fields{
			"error": err.Error(),
			"path":  cpath,
		}).Error("Error when reading directory")
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if !strings.HasSuffix(file.Name(), ".gz") && !strings.HasSuffix(file.Name(), ".log") {
			continue
		}
		// other Zeek logs share the directory, only conn logs are classified
		if pt.NewBroDataFactory(file.Name()) == nil {
			logger.WithField("path", path.Join(cpath, file.Name())).Debug("Skipping log without flow records")
			continue
		}
		toReturn = append(toReturn, path.Join(cpath, file.Name()))
	}
	return toReturn
}

// OpenLogFile opens a Zeek log, reads its header and works out which parse
// type its entries map to. The caller must Close the returned file.
func OpenLogFile(filePath string, logger *log.Logger) (*LogFile, error) {
	fileHandle, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}

	scanner, closer, err := GetFileScanner(fileHandle)
	if err != nil {
		closer()
		return nil, err
	}

	logFile := &LogFile{
		Path:    filePath,
		scanner: scanner,
		closer:  closer,
	}

	header, pending, err := scanTSVHeader(scanner)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	logFile.header = header
	logFile.pending = pending
	logFile.line = header.lines

	if header.ObjType != "" {
		// TSV log files have the type in a header
		logFile.broDataFactory = pt.NewBroDataFactory(header.ObjType)
	} else if pending && jsoniter.Valid(scanner.Bytes()) {
		logFile.json = true
		// check if "_path" is provided in the JSON data
		// https://github.com/corelight/json-streaming-logs
		t := struct {
			Path string `json:"_path"`
		}{}
		_ = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(scanner.Bytes(), &t)
		logFile.broDataFactory = pt.NewBroDataFactory(t.Path)

		// otherwise JSON log files only have the type in the filename
		if logFile.broDataFactory == nil {
			logFile.broDataFactory = pt.NewBroDataFactory(filepath.Base(filePath))
		}
	}
	if logFile.broDataFactory == nil {
		logFile.Close()
		return nil, errors.New("could not map file header to parse type")
	}

	// there is no need for the fieldMap with JSON
	if !logFile.json {
		logFile.fieldMap, err = mapZeekHeaderToParseType(header, logFile.broDataFactory, logger)
		if err != nil {
			logFile.Close()
			return nil, err
		}
	}
	return logFile, nil
}

// Next parses the next entry of the log. It returns io.EOF once the file is
// exhausted. A malformed line returns its error and leaves the file readable.
func (l *LogFile) Next() (pt.BroData, error) {
	for {
		if l.done {
			return nil, io.EOF
		}
		if !l.pending {
			if !l.scanner.Scan() {
				// a read error ends the file
				l.done = true
				if err := l.scanner.Err(); err != nil {
					return nil, err
				}
				return nil, io.EOF
			}
		}
		l.pending = false
		l.line++

		if len(l.scanner.Bytes()) == 0 {
			continue
		}

		if l.json {
			return ParseJSONLine(l.scanner.Bytes(), l.broDataFactory)
		}

		datum, err := ParseTSVLine(l.scanner.Text(), l.header, l.fieldMap, l.broDataFactory)
		if err != nil {
			return nil, err
		}
		// comment lines such as #close carry no entry
		if datum == nil {
			continue
		}
		return datum, nil
	}
}

// Close releases the file and any decompression subprocess
func (l *LogFile) Close() error {
	return l.closer()
}

// GetFileScanner returns a buffered file scanner for a bro log file, a function to close the
// underlying stream and any associated processors, as well as any error that may occur while
// creating the scanner
func GetFileScanner(fileHandle *os.File) (scanner *bufio.Scanner, closer func() error, err error) {
	// by default just close out the underlying file handle
	closer = fileHandle.Close

	if strings.HasSuffix(fileHandle.Name(), ".gz") {
		var gzipReader io.Reader
		gzipReader, closer, err = newGzipReader(fileHandle)
		if err != nil {
			return nil, closer, err
		}
		scanner = bufio.NewScanner(gzipReader)
	} else if strings.HasSuffix(fileHandle.Name(), ".log") {
		scanner = bufio.NewScanner(fileHandle)
	} else {
		return nil, closer, errors.New("filetype not recognized")
	}

	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner, closer, nil
}

// newGzipReader returns an un-gzipped byte stream given a gzip compressed byte stream.
// This method tries to use the system's pigz or gzip implementation before relying on
// Golang's gzip package (as it is quite slow). Returns stream to read from, a function to
// close the underlying stream, and any err that may occur when opening the stream.
func newGzipReader(fileHandle io.ReadCloser) (reader io.Reader, closer func() error, err error) {
	// by default just close out the underlying file handle
	// works for built in gzip library and error cases
	closer = fileHandle.Close

	var gzipPath string
	if path, err := exec.LookPath("pigz"); err == nil {
		gzipPath = path
	} else if path, err := exec.LookPath("gzip"); err == nil {
		gzipPath = path
	} else {
		reader, err = gzip.NewReader(fileHandle)
		return reader, closer, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	gzipCommand := exec.CommandContext(ctx, gzipPath, "-d", "-c")
	gzipCommand.Stdin = fileHandle

	pipeR, err := gzipCommand.StdoutPipe()
	if err != nil {
		cancel()
		return reader, fileHandle.Close, err
	}

	var cmdStdErr bytes.Buffer
	gzipCommand.Stderr = &cmdStdErr

	if err := gzipCommand.Start(); err != nil {
		cancel()
		return reader, fileHandle.Close, err
	}

	// kill the subprocess in addition to closing the file descriptor
	closer = func() error {
		cancel()
		errFile := fileHandle.Close()
		errProc := gzipCommand.Wait()

		if errProc != nil && cmdStdErr.Len() > 0 {
			errProc = fmt.Errorf("%s: %s", errProc.Error(), cmdStdErr.String())
		}

		if errProc != nil && errFile != nil {
			return fmt.Errorf("%s; %s", errProc.Error(), errFile.Error())
		}
		if errProc != nil {
			return errProc
		}
		return errFile
	}

	return pipeR, closer, nil
}

// scanTSVHeader scans the comment lines out of a bro file. It reports
// whether the scanner was left holding the first entry of the file.
func scanTSVHeader(fileScanner *bufio.Scanner) (*BroHeader, bool, error) {
	toReturn := &BroHeader{Separator: "\t", Empty: "(empty)", Unset: "-", SetSep: ","}
	pending := false
	for fileScanner.Scan() {
		toReturn.lines++
		if len(fileScanner.Bytes()) < 1 {
			continue
		}
		if fileScanner.Bytes()[0] != '#' {
			//We are done parsing the comments
			toReturn.lines--
			pending = true
			break
		}

		line := strings.Fields(fileScanner.Text())
		if len(line) < 2 {
			continue
		}
		switch line[0][1:] {
		case "separator":
			var err error
			toReturn.Separator, err = strconv.Unquote("\"" + line[1] + "\"")
			if err != nil {
				return toReturn, false, err
			}
		case "set_separator":
			toReturn.SetSep = line[1]
		case "empty_field":
			toReturn.Empty = line[1]
		case "unset_field":
			toReturn.Unset = line[1]
		case "fields":
			toReturn.Names = line[1:]
		case "types":
			toReturn.Types = line[1:]
		case "path":
			toReturn.ObjType = line[1]
		}
	}
	if err := fileScanner.Err(); err != nil {
		return toReturn, false, err
	}

	if len(toReturn.Names) != len(toReturn.Types) {
		return toReturn, false, errors.New("name / type mismatch")
	}
	return toReturn, pending, nil
}

func mapZeekHeaderToParseType(header *BroHeader, broDataFactory func() pt.BroData, logger *log.Logger) (ZeekHeaderIndexMap, error) {
	broData := broDataFactory()
	structType := reflect.TypeOf(broData).Elem()

	indexMap := ZeekHeaderIndexMap{
		NthLogFieldExistsInParseType: make([]bool, len(header.Names)),
		NthLogFieldParseTypeOffset:   make([]int, len(header.Names)),
	}

	// parseTypeFields maps from Zeek field names to the associated info as
	// defined by the broData struct tags so the header can be matched
	// without nested loops
	type parseTypeFieldInfo struct {
		zeekType             string
		parseTypeFieldOffset int
	}
	parseTypeFields := make(map[string]parseTypeFieldInfo)

	for i := 0; i < structType.NumField(); i++ {
		structField := structType.Field(i)
		zeekName := structField.Tag.Get("bro")
		zeekType := structField.Tag.Get("brotype")

		//If this field is not associated with bro, skip it
		if len(zeekName) == 0 && len(zeekType) == 0 {
			continue
		}

		if len(zeekName) == 0 || len(zeekType) == 0 {
			return indexMap, errors.New("incomplete bro variable")
		}

		parseTypeFields[zeekName] = parseTypeFieldInfo{
			zeekType:             zeekType,
			parseTypeFieldOffset: i,
		}
	}

	for index, name := range header.Names {
		fieldInfo, ok := parseTypeFields[name]
		if !ok {
			//an unmatched field which exists in the log but not the struct
			//is not a fatal error, so we report it and move on
			logger.WithFields(log.Fields{
				"missing_field": name,
			}).Debug("the log contains a field with no candidate in the data structure")
			continue
		}

		if header.Types[index] != fieldInfo.zeekType {
			err := fmt.Errorf("type mismatch found in log: %s is %s, expected %s",
				name, header.Types[index], fieldInfo.zeekType)
			logger.WithFields(log.Fields{
				"error":         err.Error(),
				"type in log":   header.Types[index],
				"expected type": fieldInfo.zeekType,
			}).Error("Could not map log header")
			return indexMap, err
		}

		indexMap.NthLogFieldExistsInParseType[index] = true
		indexMap.NthLogFieldParseTypeOffset[index] = fieldInfo.parseTypeFieldOffset
	}

	return indexMap, nil
}

// ParseJSONLine creates a new BroData from a line of a Zeek JSON log.
func ParseJSONLine(lineBuffer []byte, broDataFactory func() pt.BroData) (pt.BroData, error) {
	dat := broDataFactory()
	err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(lineBuffer, dat)
	if err != nil {
		return nil, fmt.Errorf("unparsable JSON in log: %w", err)
	}
	dat.ConvertFromJSON()
	return dat, nil
}

// parseTSVField stores fieldText into targetField
func parseTSVField(fieldText string, fieldType string, setSep string, targetField reflect.Value) error {
	switch fieldType {
	case pt.Time, pt.Interval, pt.Double:
		flt, err := strconv.ParseFloat(fieldText, 64)
		if err != nil {
			return fmt.Errorf("couldn't convert %s %q", fieldType, fieldText)
		}
		targetField.SetFloat(flt)
	case pt.String, pt.Enum, pt.Addr:
		targetField.SetString(fieldText)
	case pt.Port, pt.Count, pt.Int:
		intValue, err := strconv.ParseInt(fieldText, 10, 64)
		if err != nil || (fieldType != pt.Int && intValue < 0) {
			return fmt.Errorf("couldn't convert %s %q", fieldType, fieldText)
		}
		targetField.SetInt(intValue)
	case pt.Bool:
		targetField.SetBool(fieldText == "T")
	case pt.StringSet, pt.EnumSet, pt.StringVector:
		targetField.Set(reflect.ValueOf(strings.Split(fieldText, setSep)))
	default:
		return fmt.Errorf("unhandled type %s", fieldType)
	}
	return nil
}

// ParseTSVLine creates a new BroData from a line of a Zeek TSV log. Comment
// lines return a nil BroData.
func ParseTSVLine(lineString string, header *BroHeader,
	fieldMap ZeekHeaderIndexMap, broDataFactory func() pt.BroData) (pt.BroData, error) {

	if strings.HasPrefix(lineString, "#") {
		return nil, nil
	}

	tokens := strings.Split(lineString, header.Separator)
	if len(tokens) != len(header.Names) {
		return nil, fmt.Errorf("line has %d fields, header declares %d", len(tokens), len(header.Names))
	}

	dat := broDataFactory()
	data := reflect.ValueOf(dat).Elem()

	for i, token := range tokens {
		//fields not in the struct will not be parsed
		if !fieldMap.NthLogFieldExistsInParseType[i] || token == header.Empty || token == header.Unset {
			continue
		}
		err := parseTSVField(token, header.Types[i], header.SetSep, data.Field(fieldMap.NthLogFieldParseTypeOffset[i]))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", header.Names[i], err)
		}
	}

	return dat, nil
}
