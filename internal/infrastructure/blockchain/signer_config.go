package blockchain

import (
	"encoding/json"
	"os"
)

// LoadSignerEntries reads the JSON array of SignerEntry rows an operator
// configures out of band (spec §6): one entry per (chain, address) this
// deployment is able to sign payouts for. A missing file is treated as
// "no signers configured" rather than a startup error, matching
// ruleconfig's own missing-file tolerance for its companion JSON files.
func LoadSignerEntries(path string) ([]SignerEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []SignerEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
