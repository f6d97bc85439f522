package bot

import "strings"

// Lang selects the user-facing message catalog.
type Lang string

const (
	LangEN Lang = "en"
	LangDZ Lang = "dz"
)

// maxMessageLen is Telegram's hard limit for a single message.
const maxMessageLen = 4096

// catalog holds the per-language message strings.
type catalog struct {
	Welcome       string
	ChooseLang    string
	LangSet       string
	Help          string
	RateLimited   string
	Apology       string
	NoSpeech      string
	AuthIntro     string
	AuthFailed    string
	Verified      string
	NotVerified   string
	ProfileNone   string
	ProfileHeader string
	ClaimTooFew   string
	ClaimReady    string
	Processing    string
}

var catalogs = map[Lang]catalog{
	LangEN: {
		Welcome:       "Kuzu zangpo! I'm here to listen to your views on how public resources should be allocated. Send me a message or a voice note to begin.",
		ChooseLang:    "Please choose your language:",
		LangSet:       "Language set to English.",
		Help:          "Send me a text or voice message and I'll respond. Commands:\n/auth - verify your identity\n/profile - show your verified profile\n/claim - claim your participation reward\n/language - change language",
		RateLimited:   "You've sent quite a few messages this hour. Please wait a while before continuing.",
		Apology:       "Sorry, I ran into a problem answering that. Please try again in a moment.",
		NoSpeech:      "I couldn't hear any speech in that voice note. Could you try recording it again?",
		AuthIntro:     "Tap the link below to verify your identity with your digital ID wallet:",
		AuthFailed:    "Sorry, I couldn't start the verification right now. Please try again later.",
		Verified:      "Your identity has been verified. Thank you!",
		NotVerified:   "Verification was not successful. You can try again with /auth.",
		ProfileNone:   "You haven't verified your identity yet. Use /auth to get started.",
		ProfileHeader: "Your verified profile:",
		ClaimTooFew:   "Keep the conversation going a little longer before claiming your reward.",
		ClaimReady:    "Thank you for participating! Your contribution has been recorded.",
		Processing:    "Listening...",
	},
	LangDZ: {
		Welcome:       "ཀུ་ཟུ་ཟང་པོ། མི་མང་ཐོན་ཁུངས་བགོ་བཤའ་སྐོར་ལུ་ ཁྱོད་ཀྱི་བསམ་འཆར་ཉན་ནི་ལུ་ ང་འདི་ཁར་ཡོད། འགོ་བཙུགས་ནིའི་དོན་ལུ་ འཕྲིན་ཡིག་ཡང་ན་སྐད་ཀྱི་འཕྲིན་གཏང་གནང་།",
		ChooseLang:    "ཁྱོད་ཀྱི་སྐད་ཡིག་གདམ་ཁ་རྐྱབ་གནང་:",
		LangSet:       "སྐད་ཡིག་རྫོང་ཁ་ལུ་བཙུགས་ཡོད།",
		Help:          "འཕྲིན་ཡིག་ཡང་ན་སྐད་ཀྱི་འཕྲིན་གཏང་གནང་། བརྡ་བཀོད་ཚུ:\n/auth - ངོ་རྟགས་ངེས་དཔྱད\n/profile - ངེས་དཔྱད་གྲུབ་པའི་གཞི་གནད\n/claim - བཅའ་མར་གཏོགས་པའི་གསོལ་ར\n/language - སྐད་ཡིག་སོར",
		RateLimited:   "ཆུ་ཚོད་འདི་ནང་འཕྲིན་ཡིག་ལེ་ཤ་གཏང་ནུག འཕྲོ་མཐུད་ནིའི་ཧེ་མ་ དུས་ཡུན་ཅིག་བསྒུག་གནང་།",
		Apology:       "དགོངསམ་མ་ཁྲེལ། ལན་བཀོད་ནི་ལུ་དཀའ་ངལ་ཅིག་བྱུང་ཡི། ད་ལྟོ་ལས་ལོག་སྟེ་འབད་རྩོལ་བསྐྱེད་གནང་།",
		NoSpeech:      "སྐད་ཀྱི་འཕྲིན་དེ་ནང་གཏམ་ག་ནི་ཡང་མ་གོ དོག་ལོག་སྟེ་སྒྲ་བཟུང་འབད་གནང་།",
		AuthIntro:     "ཁྱོད་ཀྱི་ཌི་ཇི་ཊཱལ་ངོ་རྟགས་ཤོག་ཁྲམ་གྱི་ཐོག་ལས་ ངེས་དཔྱད་འབད་ནིའི་དོན་ལུ་ འོག་གི་འབྲེལ་མཐུད་འདི་ཨེབ་གནང་:",
		AuthFailed:    "དགོངསམ་མ་ཁྲེལ། ད་ལྟོ་ངེས་དཔྱད་འགོ་བཙུགས་མ་ཚུགས། ཤུལ་ལས་ལོག་སྟེ་འབད་རྩོལ་བསྐྱེད་གནང་།",
		Verified:      "ཁྱོད་ཀྱི་ངོ་རྟགས་ངེས་དཔྱད་གྲུབ་ཡོད། བཀའ་དྲིན་ཆེ།",
		NotVerified:   "ངེས་དཔྱད་མཐར་འཁྱོལ་མ་བྱུང་། /auth ཐོག་ལས་ལོག་སྟེ་འབད་ཚུགས།",
		ProfileNone:   "ཁྱོད་ཀྱིས་ད་ཚུན་ངོ་རྟགས་ངེས་དཔྱད་མ་འབད་བས། /auth ཐོག་ལས་འགོ་བཙུགས་གནང་།",
		ProfileHeader: "ཁྱོད་ཀྱི་ངེས་དཔྱད་གྲུབ་པའི་གཞི་གནད:",
		ClaimTooFew:   "གསོལ་ར་ལེན་ནིའི་ཧེ་མ་ གྲོས་བསྡུར་ཨ་ཙི་ཅིག་འཕྲོ་མཐུད་གནང་།",
		ClaimReady:    "བཅའ་མར་གཏོགས་མི་ལུ་བཀའ་དྲིན་ཆེ། ཁྱོད་ཀྱི་ཕན་འདེབས་ཐོ་བཀོད་འབད་ཡོད།",
		Processing:    "ཉན་དོ...",
	},
}

// Messages returns the catalog for lang, falling back to English.
func Messages(lang Lang) catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs[LangEN]
}

// SplitMessage chunks text into Telegram-sized pieces, preferring sentence
// boundaries, then line breaks, then spaces. A single run longer than the
// limit is cut hard.
func SplitMessage(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= maxMessageLen {
		return []string{text}
	}

	var parts []string
	for len(runes) > maxMessageLen {
		cut := splitPoint(runes[:maxMessageLen])
		part := strings.TrimSpace(string(runes[:cut]))
		if part != "" {
			parts = append(parts, part)
		}
		runes = runes[cut:]
		for len(runes) > 0 && (runes[0] == ' ' || runes[0] == '\n') {
			runes = runes[1:]
		}
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// splitPoint finds the best cut position within the chunk, scanning backwards
// for a sentence end, then a newline, then a space.
func splitPoint(chunk []rune) int {
	for i := len(chunk) - 1; i > 0; i-- {
		switch chunk[i] {
		case '.', '!', '?', '།':
			return i + 1
		}
	}
	for i := len(chunk) - 1; i > 0; i-- {
		if chunk[i] == '\n' {
			return i
		}
	}
	for i := len(chunk) - 1; i > 0; i-- {
		if chunk[i] == ' ' {
			return i
		}
	}
	return len(chunk)
}
