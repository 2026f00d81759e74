package main

// Icon names a glyph in the icon registry.
type Icon string

const (
	IconActivity       Icon = "Activity"
	IconArrowRightLeft Icon = "ArrowRightLeft"
	IconBinary         Icon = "Binary"
	IconBrainCircuit   Icon = "BrainCircuit"
	IconCheckCircle    Icon = "CheckCircle"
	IconCompass        Icon = "Compass"
	IconCpu            Icon = "Cpu"
	IconDivide         Icon = "Divide"
	IconDna            Icon = "Dna"
	IconEye            Icon = "Eye"
	IconGlobe          Icon = "Globe"
	IconHammer         Icon = "Hammer"
	IconHandMetal      Icon = "HandMetal"
	IconHash           Icon = "Hash"
	IconInfinity       Icon = "Infinity"
	IconLayers         Icon = "Layers"
	IconLink           Icon = "Link"
	IconMicroscope     Icon = "Microscope"
	IconPieChart       Icon = "PieChart"
	IconRefreshCw      Icon = "RefreshCw"
	IconRotateCcw      Icon = "RotateCcw"
	IconScale          Icon = "Scale"
	IconShieldCheck    Icon = "ShieldCheck"
	IconTarget         Icon = "Target"
	IconTrendingUp     Icon = "TrendingUp"
	IconWaves          Icon = "Waves"
	IconZap            Icon = "Zap"
)

// knownIcons lists every declared icon; iconGlyphs must cover all of them.
var knownIcons = []Icon{
	IconActivity, IconArrowRightLeft, IconBinary, IconBrainCircuit,
	IconCheckCircle, IconCompass, IconCpu, IconDivide, IconDna, IconEye,
	IconGlobe, IconHammer, IconHandMetal, IconHash, IconInfinity,
	IconLayers, IconLink, IconMicroscope, IconPieChart, IconRefreshCw,
	IconRotateCcw, IconScale, IconShieldCheck, IconTarget, IconTrendingUp,
	IconWaves, IconZap,
}

var iconGlyphs = map[Icon]string{
	IconActivity:       "∿",
	IconArrowRightLeft: "⇄",
	IconBinary:         "⊻",
	IconBrainCircuit:   "⌬",
	IconCheckCircle:    "✓",
	IconCompass:        "⊕",
	IconCpu:            "▣",
	IconDivide:         "÷",
	IconDna:            "§",
	IconEye:            "◉",
	IconGlobe:          "◍",
	IconHammer:         "⚒",
	IconHandMetal:      "☝",
	IconHash:           "#",
	IconInfinity:       "∞",
	IconLayers:         "≡",
	IconLink:           "⊶",
	IconMicroscope:     "⌕",
	IconPieChart:       "◔",
	IconRefreshCw:      "↻",
	IconRotateCcw:      "↺",
	IconScale:          "⚖",
	IconShieldCheck:    "⛨",
	IconTarget:         "◎",
	IconTrendingUp:     "↗",
	IconWaves:          "≈",
	IconZap:            "ϟ",
}

func (i Icon) registered() bool {
	_, ok := iconGlyphs[i]
	return ok
}

func (i Icon) glyph() string {
	if g, ok := iconGlyphs[i]; ok {
		return g
	}
	return "?"
}
