package files

import (
	"compress/gzip"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pt "github.com/activecm/flowguard/parser/parsetypes"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tsvConnLog = "#separator \\x09\n" +
	"#set_separator\t,\n" +
	"#empty_field\t(empty)\n" +
	"#unset_field\t-\n" +
	"#path\tconn\n" +
	"#open\t2020-06-05-14-00-00\n" +
	"#fields\tts\tuid\tid.orig_h\tid.orig_p\tid.resp_h\tid.resp_p\tproto\tservice\tduration\torig_bytes\tresp_bytes\tconn_state\tlocal_orig\tlocal_resp\tmissed_bytes\thistory\torig_pkts\torig_ip_bytes\tresp_pkts\tresp_ip_bytes\ttunnel_parents\tcommunity_id\n" +
	"#types\ttime\tstring\taddr\tport\taddr\tport\tenum\tstring\tinterval\tcount\tcount\tstring\tbool\tbool\tcount\tstring\tcount\tcount\tcount\tcount\tset[string]\tstring\n" +
	"1591367999.305988\tCMdzit1AMNsmfAIiQc\t192.168.4.76\t36844\t192.168.4.1\t53\tudp\tdns\t0.066851\t62\t141\tSF\tT\tT\t0\tDd\t2\t118\t2\t197\t(empty)\t1:abc\n" +
	"1591368000.000001\tC4J4Th3PJpwUYZZ6gc\t192.168.4.76\t40000\t10.0.0.1\t443\ttcp\t-\t-\t-\t-\tS0\tT\tF\t0\tS\t1\t60\t0\t0\t(empty)\t-\n" +
	"#close\t2020-06-05-15-00-00\n"

const jsonConnLog = `{"ts":1591367999.305988,"uid":"CMdzit1AMNsmfAIiQc","id.orig_h":"192.168.4.76","id.orig_p":36844,"id.resp_h":"192.168.4.1","id.resp_p":53,"proto":"udp","service":"dns","duration":0.066851,"orig_bytes":62,"resp_bytes":141,"conn_state":"SF","missed_bytes":0,"history":"Dd","orig_pkts":2,"orig_ip_bytes":118,"resp_pkts":2,"resp_ip_bytes":197}
{"ts":1591368000.000001,"uid":"C4J4Th3PJpwUYZZ6gc","id.orig_h":"192.168.4.76","id.orig_p":40000,"id.resp_h":"10.0.0.1","id.resp_p":443,"proto":"tcp","conn_state":"S0","history":"S","orig_pkts":1,"orig_ip_bytes":60,"resp_pkts":0,"resp_ip_bytes":0}
`

func quietLogger() *log.Logger {
	logger := log.New()
	logger.Out = ioutil.Discard
	return logger
}

func writeFile(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0644))
	return path
}

func readAll(t *testing.T, path string) []*pt.Conn {
	logFile, err := OpenLogFile(path, quietLogger())
	require.NoError(t, err)
	defer logFile.Close()

	var conns []*pt.Conn
	for {
		datum, err := logFile.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		conn, ok := datum.(*pt.Conn)
		require.True(t, ok)
		conns = append(conns, conn)
	}
	return conns
}

func checkConns(t *testing.T, conns []*pt.Conn) {
	require.Len(t, conns, 2)

	first := conns[0].ToRecord()
	assert.Equal(t, "CMdzit1AMNsmfAIiQc", first.UID)
	assert.Equal(t, "192.168.4.76", first.Source)
	assert.Equal(t, "192.168.4.1", first.Destination)
	assert.InDelta(t, 1591367999.305988, first.TimeStamp, 1e-6)
	assert.Equal(t, "udp", *first.Protocol)
	assert.Equal(t, "dns", *first.Service)
	assert.Equal(t, "SF", *first.ConnState)
	assert.Equal(t, "Dd", *first.History)
	assert.InDelta(t, 0.066851, *first.Duration, 1e-9)
	assert.Equal(t, int64(2), *first.OrigPkts)
	assert.Equal(t, int64(118), *first.OrigIPBytes)

	second := conns[1].ToRecord()
	assert.Equal(t, "C4J4Th3PJpwUYZZ6gc", second.UID)
	assert.Equal(t, pt.Unset, *second.Service)
	assert.Nil(t, second.Duration)
	assert.Nil(t, second.OrigBytes)
	assert.Nil(t, second.RespBytes)
	assert.Equal(t, "S0", *second.ConnState)
	assert.Equal(t, int64(60), *second.OrigIPBytes)
}

func TestReadTSVLog(t *testing.T) {
	path := writeFile(t, t.TempDir(), "conn.log", tsvConnLog)

	logFile, err := OpenLogFile(path, quietLogger())
	require.NoError(t, err)
	assert.False(t, logFile.IsJSON())
	assert.Equal(t, "conn", logFile.GetHeader().ObjType)
	assert.Equal(t, "\t", logFile.GetHeader().Separator)
	logFile.Close()

	checkConns(t, readAll(t, path))
}

func TestReadJSONLog(t *testing.T) {
	path := writeFile(t, t.TempDir(), "conn.04:00:00-05:00:00.log", jsonConnLog)

	logFile, err := OpenLogFile(path, quietLogger())
	require.NoError(t, err)
	assert.True(t, logFile.IsJSON())
	logFile.Close()

	checkConns(t, readAll(t, path))
}

func TestReadGzipLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conn.log.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(tsvConnLog))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	checkConns(t, readAll(t, path))
}

func TestMalformedLineDoesNotStopReading(t *testing.T) {
	lines := strings.Split(jsonConnLog, "\n")
	contents := lines[0] + "\n{\"ts\": oops\n" + lines[1] + "\n"
	path := writeFile(t, t.TempDir(), "conn.log", contents)

	logFile, err := OpenLogFile(path, quietLogger())
	require.NoError(t, err)
	defer logFile.Close()

	_, err = logFile.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, logFile.Line())

	_, err = logFile.Next()
	assert.Error(t, err)
	assert.Equal(t, 2, logFile.Line())

	_, err = logFile.Next()
	require.NoError(t, err)
	assert.Equal(t, 3, logFile.Line())

	_, err = logFile.Next()
	assert.Equal(t, io.EOF, err)
}

func TestTSVLineNumbers(t *testing.T) {
	path := writeFile(t, t.TempDir(), "conn.log", tsvConnLog)
	logFile, err := OpenLogFile(path, quietLogger())
	require.NoError(t, err)
	defer logFile.Close()

	_, err = logFile.Next()
	require.NoError(t, err)
	assert.Equal(t, 9, logFile.Line())
	_, err = logFile.Next()
	require.NoError(t, err)
	assert.Equal(t, 10, logFile.Line())
	_, err = logFile.Next()
	assert.Equal(t, io.EOF, err)
}

func TestOpenLogFileRejectsOtherLogs(t *testing.T) {
	dir := t.TempDir()
	dns := strings.Replace(tsvConnLog, "#path\tconn", "#path\tdns", 1)
	_, err := OpenLogFile(writeFile(t, dir, "dns.log", dns), quietLogger())
	assert.Error(t, err)

	_, err = OpenLogFile(writeFile(t, dir, "notes.txt", "hello"), quietLogger())
	assert.Error(t, err)

	mismatch := strings.Replace(tsvConnLog, "\tinterval\t", "\tstring\t", 1)
	_, err = OpenLogFile(writeFile(t, dir, "conn.log", mismatch), quietLogger())
	assert.Error(t, err)
}

func TestParseTSVLine(t *testing.T) {
	header := &BroHeader{
		Names:     []string{"uid", "orig_pkts", "history"},
		Types:     []string{pt.String, pt.Count, pt.String},
		Separator: "\t",
		Empty:     "(empty)",
		Unset:     "-",
	}
	factory := pt.NewBroDataFactory("conn")
	fieldMap, err := mapZeekHeaderToParseType(header, factory, quietLogger())
	require.NoError(t, err)

	datum, err := ParseTSVLine("C1\t3\tShAD", header, fieldMap, factory)
	require.NoError(t, err)
	conn := datum.(*pt.Conn)
	assert.Equal(t, "C1", conn.UID)
	assert.Equal(t, int64(3), conn.OrigPackets)
	assert.Equal(t, "ShAD", conn.History)

	_, err = ParseTSVLine("C1\tmany\tShAD", header, fieldMap, factory)
	assert.Error(t, err)

	_, err = ParseTSVLine("C1\t3", header, fieldMap, factory)
	assert.Error(t, err)

	datum, err = ParseTSVLine("#close\t2020", header, fieldMap, factory)
	assert.NoError(t, err)
	assert.Nil(t, datum)
}

func TestGatherLogFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "conn.log", "")
	writeFile(t, dir, "conn.01:00:00-02:00:00.log.gz", "")
	writeFile(t, dir, "dns.log.gz", "")
	writeFile(t, dir, "README", "")
	dns := writeFile(t, t.TempDir(), "dns.log", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "current"), 0755))
	writeFile(t, filepath.Join(dir, "current"), "conn.log", "")
	single := writeFile(t, t.TempDir(), "conn.00:00:00-01:00:00.log", "")

	// explicitly named files are always kept
	gathered := GatherLogFiles([]string{dir, single, dns, filepath.Join(dir, "README")}, quietLogger())
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "conn.log"),
		filepath.Join(dir, "conn.01:00:00-02:00:00.log.gz"),
		single,
		dns,
	}, gathered)
}
