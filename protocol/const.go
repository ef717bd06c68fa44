package protocol

// Protocol version the client speaks. Servers below this are rejected.
const MinProtocolVersion byte = 10

// MaxPayloadLen is the largest payload a single packet can carry.
// Larger payloads are split across continuation packets.
const MaxPayloadLen = 1<<24 - 1

// Packet header bytes.
const (
	OKHeader          byte = 0x00
	LocalInFileHeader byte = 0xfb
	EOFHeader         byte = 0xfe
	ErrHeader         byte = 0xff
)

// Command bytes.
// https://dev.mysql.com/doc/internals/en/text-protocol.html
const (
	ComQuit byte = iota + 1
	ComInitDB
	ComQuery
	ComFieldList
	ComCreateDB
	ComDropDB
	ComRefresh
	ComShutdown
	ComStatistics
	ComProcessInfo
	ComConnect
	ComProcessKill
	ComDebug
	ComPing
	ComTime
	ComDelayedInsert
	ComChangeUser
	ComBinlogDump
	ComTableDump
	ComConnectOut
	ComRegisterSlave
	ComStmtPrepare
	ComStmtExecute
	ComStmtSendLongData
	ComStmtClose
	ComStmtReset
	ComSetOption
	ComStmtFetch
)

// ComResetConnection resets session state server side and invalidates
// every prepared statement of the connection.
const ComResetConnection byte = 0x1f

// Client capability flags.
const (
	ClientLongPassword uint32 = 1 << iota
	ClientFoundRows
	ClientLongFlag
	ClientConnectWithDB
	ClientNoSchema
	ClientCompress
	ClientODBC
	ClientLocalFiles
	ClientIgnoreSpace
	ClientProtocol41
	ClientInteractive
	ClientSSL
	ClientIgnoreSigpipe
	ClientTransactions
	ClientReserved
	ClientSecureConnection
	ClientMultiStatements
	ClientMultiResults
)

// DefaultCapability is what the client announces during handshake.
var DefaultCapability = ClientLongPassword | ClientLongFlag |
	ClientConnectWithDB | ClientProtocol41 | ClientTransactions |
	ClientSecureConnection | ClientFoundRows | ClientMultiResults

// Server status flags carried in OK/EOF packets.
const (
	ServerStatusInTrans uint16 = 1 << iota
	ServerStatusAutocommit
	_
	ServerMoreResultsExists
	ServerStatusNoGoodIndexUsed
	ServerStatusNoIndexUsed
	ServerStatusCursorExists
	ServerStatusLastRowSend
	ServerStatusDBDropped
	ServerStatusNoBackslashEscaped
	ServerStatusMetadataChanged
	ServerStatusWasSlow
	ServerPSOutParams
)

// Column type codes.
// https://dev.mysql.com/doc/internals/en/com-query-response.html#column-type
const (
	TypeDecimal byte = iota
	TypeTiny
	TypeShort
	TypeLong
	TypeFloat
	TypeDouble
	TypeNull
	TypeTimestamp
	TypeLonglong
	TypeInt24
	TypeDate
	TypeDuration
	TypeDatetime
	TypeYear
	TypeNewDate
	TypeVarchar
	TypeBit
)

const (
	TypeJSON byte = iota + 0xf5
	TypeNewDecimal
	TypeEnum
	TypeSet
	TypeTinyBlob
	TypeMediumBlob
	TypeLongBlob
	TypeBlob
	TypeVarString
	TypeString
	TypeGeometry
)

// Column flags.
const (
	NotNullFlag       uint16 = 1
	PriKeyFlag        uint16 = 2
	UniqueKeyFlag     uint16 = 4
	MultipleKeyFlag   uint16 = 8
	BlobFlag          uint16 = 16
	UnsignedFlag      uint16 = 32
	ZerofillFlag      uint16 = 64
	BinaryFlag        uint16 = 128
	EnumFlag          uint16 = 256
	AutoIncrementFlag uint16 = 512
	TimestampFlag     uint16 = 1024
	SetFlag           uint16 = 2048
)

// BinaryCharsetID is the reserved charset id meaning "opaque bytes".
// Columns declared with it decode to []byte, never to string.
const BinaryCharsetID uint16 = 63

// DefaultCollationID is utf8mb4_general_ci.
const DefaultCollationID uint16 = 45

const DefaultCharset = "utf8mb4"
