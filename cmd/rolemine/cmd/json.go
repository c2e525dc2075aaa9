package cmd

import (
	"encoding/json"
	"fmt"
	"os"
)

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(data))
	os.Stdout.Sync()
	return nil
}
