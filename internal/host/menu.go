package host

import (
	"sort"
	"strings"

	"github.com/nkkko/textai/pkg/proto"
)

// Menu item IDs
const (
	ItemPreferences = "preferences"
	ItemQuit        = "quit"
	ItemNew         = "new"
	ItemOpen        = "open"
	ItemSave        = "save"
	ItemSaveAs      = "save-as"
	ItemExport      = "export"
	ItemHelp        = "help"
	ItemShortcuts   = "shortcuts"
)

// AIItemID returns the menu item ID for an AI action
func AIItemID(action proto.AIAction) string {
	return "ai-" + string(action)
}

type itemKind int

const (
	kindNotify itemKind = iota
	kindOpen
	kindQuit
)

// MenuItem is one entry of the application menu
type MenuItem struct {
	ID          string
	Label       string
	Menu        string
	Accelerator string

	kind    itemKind
	channel string
	args    []string
}

func notifyItem(menu, id, label, accel, channel string, args ...string) MenuItem {
	return MenuItem{
		ID:          id,
		Label:       label,
		Menu:        menu,
		Accelerator: accel,
		kind:        kindNotify,
		channel:     channel,
		args:        args,
	}
}

var aiLabels = map[proto.AIAction]string{
	proto.AIActionImprove:   "Improve Text",
	proto.AIActionTranslate: "Translate",
	proto.AIActionCorrect:   "Correct",
	proto.AIActionSummarize: "Summarize",
	proto.AIActionExpand:    "Expand",
	proto.AIActionTone:      "Adjust Tone",
	proto.AIActionFormat:    "Format",
	proto.AIActionOptimize:  "Optimize",
}

// defaultMenu builds the application menu template
func defaultMenu() []MenuItem {
	items := []MenuItem{
		notifyItem("TextAI", ItemPreferences, "Preferences...", "CmdOrCtrl+,", proto.ChannelOpenPreferences),
		{ID: ItemQuit, Label: "Quit", Menu: "TextAI", Accelerator: "CmdOrCtrl+Q", kind: kindQuit},

		notifyItem("File", ItemNew, "New Document", "CmdOrCtrl+N", proto.ChannelNewDocument),
		{ID: ItemOpen, Label: "Open...", Menu: "File", Accelerator: "CmdOrCtrl+O", kind: kindOpen},
		notifyItem("File", ItemSave, "Save", "CmdOrCtrl+S", proto.ChannelSaveDocument),
		notifyItem("File", ItemSaveAs, "Save As...", "CmdOrCtrl+Shift+S", proto.ChannelSaveDocumentAs),
		notifyItem("File", ItemExport, "Export...", "CmdOrCtrl+E", proto.ChannelExportDocument),
	}

	for i, action := range proto.AIActions {
		accel := "CmdOrCtrl+" + string(rune('1'+i))
		items = append(items, notifyItem("AI", AIItemID(action), aiLabels[action], accel, proto.ChannelAIAction, string(action)))
	}

	items = append(items,
		notifyItem("Help", ItemHelp, "User Guide", "", proto.ChannelShowHelp),
		notifyItem("Help", ItemShortcuts, "Keyboard Shortcuts", "", proto.ChannelShowShortcuts),
	)
	return items
}

var modifierOrder = map[string]int{
	"CmdOrCtrl": 0,
	"Alt":       1,
	"Shift":     2,
}

// NormalizeAccelerator canonicalizes an accelerator string so that
// "ctrl+shift+s", "Command+Shift+S" and "Shift+CmdOrCtrl+S" compare equal
func NormalizeAccelerator(accel string) string {
	parts := strings.Split(accel, "+")
	// "CmdOrCtrl++" names the plus key
	if strings.HasSuffix(accel, "++") {
		parts = append(parts[:len(parts)-2], "Plus")
	}

	var mods []string
	key := ""
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch strings.ToLower(part) {
		case "cmd", "command", "ctrl", "control", "cmdorctrl", "commandorcontrol", "super", "meta":
			mods = append(mods, "CmdOrCtrl")
		case "alt", "option":
			mods = append(mods, "Alt")
		case "shift":
			mods = append(mods, "Shift")
		default:
			key = strings.ToUpper(part)
		}
	}

	sort.SliceStable(mods, func(i, j int) bool {
		return modifierOrder[mods[i]] < modifierOrder[mods[j]]
	})
	mods = dedupe(mods)

	if key == "" {
		return strings.Join(mods, "+")
	}
	return strings.Join(append(mods, key), "+")
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	for i, v := range values {
		if i > 0 && values[i-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
