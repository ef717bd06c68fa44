package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/elbaro/gomysql/client"
	"github.com/elbaro/gomysql/config"
	"github.com/elbaro/gomysql/protocol"
	"github.com/ngaut/log"
	"github.com/olekukonko/tablewriter"
)

var (
	configFile = flag.String("config", "", "config file, json or toml")
	envFile    = flag.String("env", ".env", "env file with GOMYSQL_* overrides")
	addr       = flag.String("addr", "", "server address, overrides config")
	user       = flag.String("user", "", "user name, overrides config")
	db         = flag.String("db", "", "database, overrides config")
	backend    = flag.String("backend", "", "native or sql, overrides config")
	execute    = flag.String("e", "", "execute the statement and exit")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.ParseConfigFile(*configFile)
		if err != nil {
			log.Fatal(err.Error())
		}
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		log.Fatal(err.Error())
	}

	if *addr != "" {
		cfg.Addr = *addr
	}
	if *user != "" {
		cfg.User = *user
	}
	if *db != "" {
		cfg.DB = *db
	}
	if *backend != "" {
		cfg.Backend = *backend
	}

	log.SetLevelByString(cfg.LogLevel)

	b, err := open(cfg)
	if err != nil {
		log.Fatal(err.Error())
	}
	defer b.Close()

	if *execute != "" {
		if err := run(b, *execute); err != nil {
			log.Fatal(err.Error())
		}
		return
	}

	repl(b)
}

func open(cfg *config.Config) (client.Backend, error) {
	switch cfg.Backend {
	case "", "native":
		return client.Connect(client.Options{
			Addr:     cfg.Addr,
			User:     cfg.User,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	case "sql":
		return client.OpenSQL(cfg.AssembleDSN())
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func repl(b client.Backend) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		sql := strings.TrimSpace(scanner.Text())
		switch sql {
		case "":
		case "exit", "quit":
			return
		default:
			if err := run(b, sql); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
		fmt.Print("> ")
	}
}

func run(b client.Backend, sql string) error {
	res, err := b.Query(sql)
	if err != nil {
		return err
	}

	if !res.HasResultSet() {
		fmt.Printf("OK, %d rows affected", res.AffectedRows)
		if res.LastInsertID > 0 {
			fmt.Printf(", last insert id %d", res.LastInsertID)
		}
		fmt.Println()
		return nil
	}

	for _, set := range res.Sets {
		printResultSet(set)
	}
	return nil
}

func printResultSet(set *client.ResultSet) {
	table := tablewriter.NewWriter(os.Stdout)

	header := make([]string, len(set.Columns))
	for i, column := range set.Columns {
		header[i] = column.Name
	}
	table.SetHeader(header)

	for _, row := range set.Rows {
		cells := make([]string, row.Len())
		for i, v := range row.Values() {
			cells[i] = formatValue(v)
		}
		table.Append(cells)
	}

	table.Render()
	fmt.Printf("%d rows\n", len(set.Rows))
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("0x%x", val)
	case protocol.Decimal:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
