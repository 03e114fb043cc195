// cmd/economy/main.go

// economy 以離散週期執行封閉經濟模擬：銀行、借款人與工廠，
// 交易與指標寫入 SQLite，結束時保存 JSON 快照供下次續跑。
package main

import (
	"os"

	"economy/cmd/economy/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
