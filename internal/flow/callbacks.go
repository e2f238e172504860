package flow

import (
	"strconv"
	"strings"
)

// Callback data grammar. The flow engine owns these strings; the transport
// echoes them back verbatim on button press.
const (
	CBWelcomeInfo  = "welcome_info"
	CBWelcomeStart = "welcome_start"

	CBRegLangPrefix = "reg_lang_"
	CBRegSkipName   = "reg_skip_name"
	CBRegWelcome    = "reg_tarif_welcome"
	CBRegConfirm    = "reg_confirm"
	CBRegReset      = "reg_reset"
	CBRegStart      = "reg_start"

	CBTarifTypePrefix     = "tarif_type_"
	CBTarifDurationPrefix = "tarif_duration_"
	CBTarifCurrencyPrefix = "tarif_currency_"
	CBTarifAddPrice       = "tarif_add_price"
	CBTarifContinue       = "tarif_continue"
	CBTarifAddNew         = "tarif_add_new"
	CBTarifSelectPrefix   = "tarif_select_"

	CBCodeTarifPrefix = "code_tarif_"
	CBCodeConfirm     = "code_confirm"
	CBCodeReset       = "code_reset"
	CBCodeAddNew      = "code_add_new"

	CBShowMenu     = "show_menu"
	CBShowAbout    = "show_about"
	CBShowInfo     = "show_info"
	CBShowSettings = "show_settings"
	CBShowTarifs   = "show_tarifs"
	CBShowLimits   = "show_limits"

	CBContextReset  = "context_reset"
	CBContextLength = "context_length"
	CBBackToChat    = "back_to_chat"

	CBSettingsNamePrefix        = "settings_name_"
	CBSettingsSendCode          = "tarifs_send_code"
	CBSettingsServiceInfo       = "settings_service_info"
	CBSettingsLangPrefix        = "settings_lang_"
	CBSettingsTarifsPrefix      = "settings_tarifs_"
	CBSettingsRandomValuePrefix = "settings_random_value_"
	CBSettingsRandomModelPrefix = "settings_random_model_"
	CBSettingsRandomPrefix      = "settings_random_"

	CBToggleLanguagePrefix    = "toggle_language_"
	CBToggleContextPrefix     = "toggle_context_"
	CBToggleServiceInfoPrefix = "toggle_service_info_"
	CBContextLengthPrefix     = "context_change_length_"
)

// ParseQueryID extracts the trailing integer id: "code_tarif_pro_7" -> 7.
func ParseQueryID(data string) int64 {
	i := strings.LastIndexByte(data, '_')
	if i < 0 {
		return 0
	}
	id, _ := strconv.ParseInt(data[i+1:], 10, 64)
	return id
}

// ParseQueryName extracts the name between the last two separators:
// "code_tarif_pro_7" with prefix "code_tarif_" -> "pro".
func ParseQueryName(data, prefix string) string {
	rest := strings.TrimPrefix(data, prefix)
	i := strings.LastIndexByte(rest, '_')
	if i < 0 {
		return rest
	}
	return rest[:i]
}

// ParseToggleID extracts the id from "<prefix><id>_<value>".
func ParseToggleID(data, prefix string) int64 {
	rest := strings.TrimPrefix(data, prefix)
	i := strings.IndexByte(rest, '_')
	if i < 0 {
		return 0
	}
	id, _ := strconv.ParseInt(rest[:i], 10, 64)
	return id
}

// ParseToggleValue extracts the trailing word from "<prefix><id>_<value>".
func ParseToggleValue(data string) string {
	i := strings.LastIndexByte(data, '_')
	if i < 0 {
		return ""
	}
	return data[i+1:]
}

// ParseContextLength extracts (max, accountID) from
// "context_change_length_<max>_<accountId>".
func ParseContextLength(data string) (int, int64) {
	rest := strings.TrimPrefix(data, CBContextLengthPrefix)
	parts := strings.Split(rest, "_")
	if len(parts) != 2 {
		return 0, 0
	}
	max, _ := strconv.Atoi(parts[0])
	id, _ := strconv.ParseInt(parts[1], 10, 64)
	return max, id
}

// ParseRandomValue extracts (knob, value, accountID) from
// "settings_random_value_<model>_<value>_<accountId>".
func ParseRandomValue(data string) (string, float64, int64) {
	rest := strings.TrimPrefix(data, CBSettingsRandomValuePrefix)
	parts := strings.Split(rest, "_")
	if len(parts) != 3 {
		return "", 0, 0
	}
	v, _ := strconv.ParseFloat(parts[1], 64)
	id, _ := strconv.ParseInt(parts[2], 10, 64)
	return parts[0], v, id
}
