package deepgram

type Voice string

const (
	VoiceAsteria Voice = "aura-2-asteria-en"
	VoiceLuna    Voice = "aura-2-luna-en"
	VoiceStella  Voice = "aura-2-stella-en"
	VoiceAthena  Voice = "aura-2-athena-en"
	VoiceHera    Voice = "aura-2-hera-en"
	VoiceOrion   Voice = "aura-2-orion-en"
	VoiceArcas   Voice = "aura-2-arcas-en"
	VoicePerseus Voice = "aura-2-perseus-en"
	VoiceAngus   Voice = "aura-2-angus-en"
	VoiceOrpheus Voice = "aura-2-orpheus-en"
	VoiceHelios  Voice = "aura-2-helios-en"
	VoiceZeus    Voice = "aura-2-zeus-en"
)

const defaultVoice = VoiceAsteria

func GetAvailableVoices() []Voice {
	return []Voice{
		VoiceAsteria, VoiceLuna, VoiceStella, VoiceAthena, VoiceHera, VoiceOrion,
		VoiceArcas, VoicePerseus, VoiceAngus, VoiceOrpheus, VoiceHelios, VoiceZeus,
	}
}
