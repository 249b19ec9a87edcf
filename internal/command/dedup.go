package command

// Dedup drops commands whose Key was already seen, keeping the first
// occurrence and the original relative order.
func Dedup(cmds []Command) []Command {
	if len(cmds) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(cmds))
	out := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		k := c.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Parse runs extraction, classification and deduplication over one message.
func Parse(text string) []Command {
	raw := Extract(text)
	if len(raw) == 0 {
		return nil
	}
	cmds := make([]Command, 0, len(raw))
	for _, r := range raw {
		if c, ok := Classify(r); ok {
			cmds = append(cmds, c)
		}
	}
	return Dedup(cmds)
}
