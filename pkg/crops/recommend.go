/* Copyright 2025 Leafsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package crops

// Deficiency score thresholds. Scores are normalized to [0, 1].
const (
	// ThresholdAttention is the score at or above which a nutrient needs attention
	ThresholdAttention = 0.4
	// ThresholdCritical is the score at or above which a deficiency is critical
	ThresholdCritical = 0.7
)

// Severity levels and priorities
const (
	SeverityHealthy   = "healthy"
	SeverityAttention = "attention"
	SeverityCritical  = "critical"
)

// Advice is a per-nutrient fertilizer recommendation
type Advice struct {
	En      string `json:"en"`
	Hi      string `json:"hi"`
	Needed  bool   `json:"needed"`
	Urgency string `json:"urgency,omitempty"`
}

// Recommendation aggregates per-nutrient advice for one scan
type Recommendation struct {
	N        Advice `json:"n"`
	P        Advice `json:"p"`
	K        Advice `json:"k"`
	Priority string `json:"priority"`
}

type adviceText struct {
	en string
	hi string
}

type cropAdvice struct {
	n adviceText
	p adviceText
	k adviceText
}

var fertilizerAdvice = map[int]cropAdvice{
	1: { // Wheat
		n: adviceText{
			en: "Apply 50-70 kg Urea per acre. Split into 2-3 doses during growth stages.",
			hi: "प्रति एकड़ 50-70 किलो यूरिया डालें। विकास चरणों में 2-3 खुराक में बांटें।",
		},
		p: adviceText{
			en: "Apply 25-35 kg DAP per acre at sowing time.",
			hi: "बुवाई के समय प्रति एकड़ 25-35 किलो डीएपी डालें।",
		},
		k: adviceText{
			en: "Apply 20-30 kg MOP (Muriate of Potash) per acre.",
			hi: "प्रति एकड़ 20-30 किलो एमओपी (म्यूरेट ऑफ पोटाश) डालें।",
		},
	},
	2: { // Rice
		n: adviceText{
			en: "Apply 60-80 kg Urea per acre. Apply in 3 splits: basal, tillering, panicle initiation.",
			hi: "प्रति एकड़ 60-80 किलो यूरिया डालें। 3 बार में: बेसल, टिलरिंग, पैनिकल शुरुआत।",
		},
		p: adviceText{
			en: "Apply 30-40 kg DAP per acre as basal dose before transplanting.",
			hi: "रोपाई से पहले बेसल खुराक के रूप में प्रति एकड़ 30-40 किलो डीएपी डालें।",
		},
		k: adviceText{
			en: "Apply 25-35 kg MOP per acre in two splits.",
			hi: "प्रति एकड़ 25-35 किलो एमओपी दो बार में डालें।",
		},
	},
	5: { // Maize
		n: adviceText{
			en: "Apply 60-80 kg Urea per acre. Split into 3 doses: at sowing, knee-high, and tasseling.",
			hi: "प्रति एकड़ 60-80 किलो यूरिया डालें। 3 बार में: बुवाई, घुटने तक ऊंचाई, और तसल निकलने पर।",
		},
		p: adviceText{
			en: "Apply 25-35 kg DAP per acre as basal dose at sowing.",
			hi: "बुवाई के समय बेसल खुराक के रूप में प्रति एकड़ 25-35 किलो डीएपी डालें।",
		},
		k: adviceText{
			en: "Apply 20-30 kg MOP per acre. Important for grain filling.",
			hi: "प्रति एकड़ 20-30 किलो एमओपी डालें। दाना भरने के लिए महत्वपूर्ण।",
		},
	},
	6: { // Banana
		n: adviceText{
			en: "Apply 200-250g Urea per plant per year in 4-5 splits.",
			hi: "प्रति पौधा प्रति वर्ष 200-250 ग्राम यूरिया 4-5 बार में डालें।",
		},
		p: adviceText{
			en: "Apply 100-150g SSP per plant at planting and flowering.",
			hi: "रोपाई और फूल आने पर प्रति पौधा 100-150 ग्राम एसएसपी डालें।",
		},
		k: adviceText{
			en: "Apply 250-300g MOP per plant per year in 3-4 splits. Critical for fruit quality.",
			hi: "प्रति पौधा प्रति वर्ष 250-300 ग्राम एमओपी 3-4 बार में डालें। फल गुणवत्ता के लिए महत्वपूर्ण।",
		},
	},
	7: { // Coffee
		n: adviceText{
			en: "Apply 40-60g Urea per plant in 2-3 splits during rainy season.",
			hi: "बारिश के मौसम में प्रति पौधा 40-60 ग्राम यूरिया 2-3 बार में डालें।",
		},
		p: adviceText{
			en: "Apply 20-30g SSP per plant at start of monsoon.",
			hi: "मानसून की शुरुआत में प्रति पौधा 20-30 ग्राम एसएसपी डालें।",
		},
		k: adviceText{
			en: "Apply 30-40g MOP per plant in 2 splits. Important for bean quality.",
			hi: "प्रति पौधा 30-40 ग्राम एमओपी 2 बार में डालें। बीन गुणवत्ता के लिए महत्वपूर्ण।",
		},
	},
	9: { // Eggplant
		n: adviceText{
			en: "Apply 12-18 kg Urea per 1000 sq.m in 4-5 splits.",
			hi: "प्रति 1000 वर्ग मीटर 12-18 किलो यूरिया 4-5 बार में डालें।",
		},
		p: adviceText{
			en: "Apply 10-15 kg DAP per 1000 sq.m at transplanting.",
			hi: "रोपाई के समय प्रति 1000 वर्ग मीटर 10-15 किलो डीएपी डालें।",
		},
		k: adviceText{
			en: "Apply 12-15 kg MOP per 1000 sq.m. Important for fruit quality and yield.",
			hi: "प्रति 1000 वर्ग मीटर 12-15 किलो एमओपी डालें। फल गुणवत्ता और उपज के लिए महत्वपूर्ण।",
		},
	},
	10: { // Ash Gourd
		n: adviceText{
			en: "Apply 8-12 kg Urea per 1000 sq.m in 3-4 splits during vine growth.",
			hi: "बेल वृद्धि के दौरान प्रति 1000 वर्ग मीटर 8-12 किलो यूरिया 3-4 बार में डालें।",
		},
		p: adviceText{
			en: "Apply 6-10 kg DAP per 1000 sq.m at sowing/transplanting.",
			hi: "बुवाई/रोपाई के समय प्रति 1000 वर्ग मीटर 6-10 किलो डीएपी डालें।",
		},
		k: adviceText{
			en: "Apply 10-14 kg MOP per 1000 sq.m. Important for fruit size.",
			hi: "प्रति 1000 वर्ग मीटर 10-14 किलो एमओपी डालें। फल आकार के लिए महत्वपूर्ण।",
		},
	},
	11: { // Bitter Gourd
		n: adviceText{
			en: "Apply 10-15 kg Urea per 1000 sq.m in 3-4 splits.",
			hi: "प्रति 1000 वर्ग मीटर 10-15 किलो यूरिया 3-4 बार में डालें।",
		},
		p: adviceText{
			en: "Apply 8-12 kg DAP per 1000 sq.m at sowing.",
			hi: "बुवाई के समय प्रति 1000 वर्ग मीटर 8-12 किलो डीएपी डालें।",
		},
		k: adviceText{
			en: "Apply 10-15 kg MOP per 1000 sq.m for better fruiting.",
			hi: "बेहतर फलन के लिए प्रति 1000 वर्ग मीटर 10-15 किलो एमओपी डालें।",
		},
	},
	13: { // Snake Gourd
		n: adviceText{
			en: "Apply 10-14 kg Urea per 1000 sq.m in 3-4 splits.",
			hi: "प्रति 1000 वर्ग मीटर 10-14 किलो यूरिया 3-4 बार में डालें।",
		},
		p: adviceText{
			en: "Apply 8-10 kg DAP per 1000 sq.m at sowing.",
			hi: "बुवाई के समय प्रति 1000 वर्ग मीटर 8-10 किलो डीएपी डालें।",
		},
		k: adviceText{
			en: "Apply 10-12 kg MOP per 1000 sq.m. Important for long fruit development.",
			hi: "प्रति 1000 वर्ग मीटर 10-12 किलो एमओपी डालें। लंबे फल विकास के लिए महत्वपूर्ण।",
		},
	},
}

// Severity classifies a deficiency score
func Severity(score float64) string {
	if score >= ThresholdCritical {
		return SeverityCritical
	}
	if score >= ThresholdAttention {
		return SeverityAttention
	}

	return SeverityHealthy
}

func urgency(score float64) string {
	if score >= ThresholdCritical {
		return "high"
	}

	return "medium"
}

func adviceFor(text adviceText, score float64) Advice {
	if score < ThresholdAttention {
		return Advice{}
	}

	return Advice{
		En:      text.en,
		Hi:      text.hi,
		Needed:  true,
		Urgency: urgency(score),
	}
}

// Recommend generates crop-specific fertilizer advice for the given
// deficiency scores. Unknown crop ids fall back to the wheat advice.
func Recommend(cropID int, nScore, pScore, kScore float64) Recommendation {
	texts, ok := fertilizerAdvice[cropID]
	if !ok {
		texts = fertilizerAdvice[DefaultID]
	}

	maxScore := nScore
	if pScore > maxScore {
		maxScore = pScore
	}
	if kScore > maxScore {
		maxScore = kScore
	}

	return Recommendation{
		N:        adviceFor(texts.n, nScore),
		P:        adviceFor(texts.p, pScore),
		K:        adviceFor(texts.k, kScore),
		Priority: Severity(maxScore),
	}
}
